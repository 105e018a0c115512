package sealevel

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"k8s.io/klog/v2"
)

// LoaderKind is the closed set of program owners the harness knows how to
// synthesize program accounts for.
type LoaderKind int

const (
	LoaderNative LoaderKind = iota
	LoaderDeprecated
	LoaderV2
	LoaderUpgradeable
	LoaderV4
)

var loaderKeys = map[LoaderKind]solana.PublicKey{
	LoaderNative:      NativeLoaderAddr,
	LoaderDeprecated:  BpfLoaderDeprecatedAddr,
	LoaderV2:          BpfLoaderAddr,
	LoaderUpgradeable: BpfLoaderUpgradeableAddr,
	LoaderV4:          LoaderV4Addr,
}

func (k LoaderKind) Key() solana.PublicKey {
	key, ok := loaderKeys[k]
	if !ok {
		panic(fmt.Sprintf("unknown loader kind %d", k))
	}
	return key
}

func (k LoaderKind) String() string {
	switch k {
	case LoaderNative:
		return "native"
	case LoaderDeprecated:
		return "bpf-loader-deprecated"
	case LoaderV2:
		return "bpf-loader"
	case LoaderUpgradeable:
		return "bpf-loader-upgradeable"
	case LoaderV4:
		return "loader-v4"
	}
	return fmt.Sprintf("LoaderKind(%d)", int(k))
}

func LoaderKindForKey(key solana.PublicKey) (LoaderKind, bool) {
	for kind, k := range loaderKeys {
		if k == key {
			return kind, true
		}
	}
	return 0, false
}

// ParseLoaderKind accepts either a loader name or its base58 address.
func ParseLoaderKind(s string) (LoaderKind, error) {
	for kind, key := range loaderKeys {
		if s == kind.String() || s == key.String() {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown loader %q", s)
}

func loaderComputeUnits(loaderKey solana.PublicKey) uint64 {
	switch loaderKey {
	case BpfLoaderDeprecatedAddr:
		return CUDeprecatedLoaderComputeUnits
	case BpfLoaderUpgradeableAddr:
		return CUUpgradeableLoaderComputeUnits
	case LoaderV4Addr:
		return CULoaderV4ComputeUnits
	}
	return CUDefaultLoaderComputeUnits
}

// loaderEntrypoint is the builtin registered for every bytecode loader. It
// hands the invoked program's cached executable to the configured VM.
func loaderEntrypoint(loaderKey solana.PublicKey) BuiltinFunc {
	return func(execCtx *ExecutionCtx) error {
		txCtx := execCtx.TransactionContext
		instrCtx, err := txCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}

		programAcct, err := instrCtx.BorrowLastProgramAccount(txCtx)
		if err != nil {
			return err
		}
		programId := programAcct.Key()
		executable := programAcct.IsExecutable()
		programAcct.Drop()

		if programId == loaderKey {
			// deploy, upgrade and friends
			err = execCtx.ComputeMeter.Consume(loaderComputeUnits(loaderKey))
			if err != nil {
				return err
			}
			klog.Errorf("%s: loader management instructions are not supported", loaderKey)
			return InstrErrUnsupportedProgramId
		}

		if !executable {
			return InstrErrIncorrectProgramId
		}

		entry, ok := execCtx.Programs.Load(programId)
		if !ok || entry.Elf == nil {
			klog.Errorf("program %s is not cached", programId)
			return InstrErrInvalidAccountData
		}

		if execCtx.VM == nil {
			klog.Errorf("no VM configured to run %s", programId)
			return InstrErrUnsupportedProgramId
		}
		return execCtx.VM.Execute(execCtx, entry)
	}
}

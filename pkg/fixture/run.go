package fixture

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/features"
	"go.firedancer.io/harness/pkg/harness"
	"go.firedancer.io/harness/pkg/sealevel"
	"go.firedancer.io/harness/pkg/sysvar"
	"k8s.io/klog/v2"
)

var ErrUnknownProgram = errors.New("program is neither cached nor deployed in the fixture accounts")

// Setup prepares a fixture's harness before the instruction runs, for
// example by loading programs the fixture does not carry.
type Setup func(h *harness.Harness) error

// Harness builds a harness configured from the fixture input on top of
// base. Bytecode programs deployed in the input accounts are cached after
// setup runs, so they win over programs setup registers.
// base.Metrics is ignored since fixtures are usually run by the thousand.
func (f *Fixture) Harness(base harness.Config, setup ...Setup) (*harness.Harness, error) {
	config := base
	config.Metrics = nil
	if f.Input.ComputeBudget.ComputeUnitLimit != 0 {
		config.ComputeBudget = f.Input.ComputeBudget
	}
	if len(f.Input.Features) > 0 {
		feats := features.NewFeaturesDefault()
		for _, name := range f.Input.Features {
			if err := feats.EnableByName(name, 0); err != nil {
				return nil, err
			}
		}
		config.Features = feats
	}
	sysvars := sysvar.NewSysvars()
	if base.Sysvars != nil {
		sysvars = base.Sysvars.Snapshot()
	}
	f.Input.Sysvars.Apply(sysvars)
	config.Sysvars = sysvars

	h := harness.New(config)
	for _, fn := range setup {
		if err := fn(h); err != nil {
			return nil, err
		}
	}

	accts, err := f.Input.KeyedAccounts()
	if err != nil {
		return nil, err
	}
	for _, p := range deployedPrograms(accts) {
		klog.V(3).Infof("fixture %s: caching program %s owned by %s", f.Name, p.programId, p.loaderKey)
		h.AddProgram(p.programId, p.loaderKey, p.elf)
	}
	return h, nil
}

// Run executes the fixture's instruction on a fresh harness built by Harness.
func (f *Fixture) Run(base harness.Config, setup ...Setup) (*harness.InstructionResult, error) {
	h, err := f.Harness(base, setup...)
	if err != nil {
		return nil, err
	}
	accts, err := f.Input.KeyedAccounts()
	if err != nil {
		return nil, err
	}
	ix, err := f.Input.Instruction.Instruction()
	if err != nil {
		return nil, err
	}
	if !runnable(h, ix.ProgramId, accts) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramId)
	}
	result := h.ProcessInstruction(ix, accts)
	return &result, nil
}

func runnable(h *harness.Harness, programId solana.PublicKey, accts []accounts.KeyedAccount) bool {
	if sealevel.IsPrecompile(programId) {
		return true
	}
	if _, ok := h.ProgramCache().Load(programId); ok {
		return true
	}
	for _, ka := range accts {
		if ka.Key == programId {
			return ka.Account.Owner == sealevel.NativeLoaderAddr
		}
	}
	return false
}

type deployedProgram struct {
	programId solana.PublicKey
	loaderKey solana.PublicKey
	elf       []byte
}

// deployedPrograms finds executable accounts owned by a bytecode loader and
// extracts their executable bytes.
func deployedPrograms(accts []accounts.KeyedAccount) []deployedProgram {
	byKey := make(map[solana.PublicKey]*accounts.Account, len(accts))
	for i := range accts {
		byKey[accts[i].Key] = &accts[i].Account
	}

	var out []deployedProgram
	for _, ka := range accts {
		acct := ka.Account
		if !acct.Executable {
			continue
		}
		var elf []byte
		switch acct.Owner {
		case sealevel.BpfLoaderDeprecatedAddr, sealevel.BpfLoaderAddr:
			elf = acct.Data
		case sealevel.BpfLoaderUpgradeableAddr:
			programDataAddr, ok := sealevel.ProgramDataAddressOf(acct.Data)
			if !ok {
				continue
			}
			programData, ok := byKey[programDataAddr]
			if !ok {
				continue
			}
			if elf, ok = sealevel.ElfFromProgramData(programData.Data); !ok {
				continue
			}
		case sealevel.LoaderV4Addr:
			if _, ok := sealevel.UnmarshalLoaderV4State(acct.Data); !ok {
				continue
			}
			elf = acct.Data[sealevel.LoaderV4ProgramDataOffset:]
		default:
			continue
		}
		out = append(out, deployedProgram{programId: ka.Key, loaderKey: acct.Owner, elf: elf})
	}
	return out
}

// FromResult captures an execution as a fixture whose expected output is
// what the harness produced.
func FromResult(name string, input Input, result *harness.InstructionResult) *Fixture {
	return &Fixture{
		Name:   name,
		Input:  input,
		Output: OutputFrom(result),
	}
}

func OutputFrom(result *harness.InstructionResult) Output {
	out := Output{
		ProgramResult:     resultString(result.ProgramResult),
		ComputeUnits:      result.ComputeUnitsConsumed,
		ResultingAccounts: make([]Account, 0, len(result.ResultingAccounts)),
	}
	if len(result.ReturnData) > 0 {
		out.ReturnData = base64.StdEncoding.EncodeToString(result.ReturnData)
	}
	for _, ka := range result.ResultingAccounts {
		out.ResultingAccounts = append(out.ResultingAccounts, AccountFrom(ka))
	}
	return out
}

func resultString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

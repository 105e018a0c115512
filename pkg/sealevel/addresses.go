package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/base58"
)

const NativeLoaderAddrStr = "NativeLoader1111111111111111111111111111111"

var NativeLoaderAddr = solana.PublicKey(base58.MustDecodeFromString(NativeLoaderAddrStr))

const BpfLoaderDeprecatedAddrStr = "BPFLoader1111111111111111111111111111111111"

var BpfLoaderDeprecatedAddr = solana.PublicKey(base58.MustDecodeFromString(BpfLoaderDeprecatedAddrStr))

const BpfLoaderAddrStr = "BPFLoader2111111111111111111111111111111111"

var BpfLoaderAddr = solana.PublicKey(base58.MustDecodeFromString(BpfLoaderAddrStr))

const BpfLoaderUpgradeableAddrStr = "BPFLoaderUpgradeab1e11111111111111111111111"

var BpfLoaderUpgradeableAddr = solana.PublicKey(base58.MustDecodeFromString(BpfLoaderUpgradeableAddrStr))

const LoaderV4AddrStr = "LoaderV411111111111111111111111111111111111"

var LoaderV4Addr = solana.PublicKey(base58.MustDecodeFromString(LoaderV4AddrStr))

const SystemProgramAddrStr = "11111111111111111111111111111111"

var SystemProgramAddr = solana.PublicKey(base58.MustDecodeFromString(SystemProgramAddrStr))

const Ed25519PrecompileAddrStr = "Ed25519SigVerify111111111111111111111111111"

var Ed25519PrecompileAddr = solana.PublicKey(base58.MustDecodeFromString(Ed25519PrecompileAddrStr))

const Secp256kPrecompileAddrStr = "KeccakSecp256k11111111111111111111111111111"

var Secp256kPrecompileAddr = solana.PublicKey(base58.MustDecodeFromString(Secp256kPrecompileAddrStr))

const Secp256r1PrecompileAddrStr = "Secp256r1SigVerify1111111111111111111111111"

var Secp256r1PrecompileAddr = solana.PublicKey(base58.MustDecodeFromString(Secp256r1PrecompileAddrStr))

// IsPrecompile reports whether programId names a signature verification
// precompile. Precompiles have no program account of their own.
func IsPrecompile(programId solana.PublicKey) bool {
	switch programId {
	case Ed25519PrecompileAddr, Secp256kPrecompileAddr, Secp256r1PrecompileAddr:
		return true
	}
	return false
}

func verifySigner(authorized solana.PublicKey, signers []solana.PublicKey) error {
	for _, signer := range signers {
		if signer == authorized {
			return nil
		}
	}
	return InstrErrMissingRequiredSignature
}

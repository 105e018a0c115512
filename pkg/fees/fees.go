// Package fees computes what a transaction would be charged. The harness
// reports fees; it never debits them.
package fees

import (
	"math"

	"github.com/ryanavella/wide"
	"go.firedancer.io/harness/pkg/safemath"
	"go.firedancer.io/harness/pkg/sealevel"
)

const DefaultLamportsPerSignature = 5000

const microLamportsPerLamport = 1000000

// PriorityFee converts a compute unit price in micro-lamports into lamports
// for computeUnitLimit units, rounding up and saturating at MaxUint64.
func PriorityFee(computeUnitPrice, computeUnitLimit uint64) uint64 {
	if computeUnitPrice == 0 {
		return 0
	}

	microLamportFee := wide.Uint128FromUint64(computeUnitPrice).Mul(wide.Uint128FromUint64(computeUnitLimit))
	fee := microLamportFee.Add(wide.Uint128FromUint64(microLamportsPerLamport - 1)).Div(wide.Uint128FromUint64(microLamportsPerLamport))

	if !fee.IsUint64() {
		return math.MaxUint64
	}
	return fee.Uint64()
}

// NumSignatures counts the transaction signatures plus the signatures
// verified by precompile instructions, which are charged the same way.
func NumSignatures(instrs []sealevel.Instruction, numSigners uint64) uint64 {
	numSignatures := numSigners
	for _, instr := range instrs {
		if !sealevel.IsPrecompile(instr.ProgramId) || len(instr.Data) == 0 {
			continue
		}
		numSignatures = safemath.SaturatingAddU64(numSignatures, uint64(instr.Data[0]))
	}
	return numSignatures
}

// SignatureFee is the base fee for instrs signed by numSigners keys.
func SignatureFee(instrs []sealevel.Instruction, numSigners uint64, lamportsPerSignature uint64) uint64 {
	return safemath.SaturatingMulU64(NumSignatures(instrs, numSigners), lamportsPerSignature)
}

// TotalFee adds the priority fee to the signature fee.
func TotalFee(instrs []sealevel.Instruction, numSigners, lamportsPerSignature, computeUnitPrice, computeUnitLimit uint64) uint64 {
	return safemath.SaturatingAddU64(
		SignatureFee(instrs, numSigners, lamportsPerSignature),
		PriorityFee(computeUnitPrice, computeUnitLimit),
	)
}

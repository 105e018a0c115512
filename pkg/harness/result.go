package harness

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/sealevel"
)

// InstructionResult is the outcome of one instruction or of a chain. It is a
// snapshot; nothing in it is persisted.
type InstructionResult struct {
	ComputeUnitsConsumed uint64
	ExecutionTime        time.Duration
	ProgramResult        error
	ReturnData           []byte
	ResultingAccounts    []accounts.KeyedAccount
	Logs                 []string

	// RawResult is the engine output of the last executed instruction.
	RawResult *sealevel.ExecuteOutput
}

func (r *InstructionResult) Succeeded() bool {
	return r.ProgramResult == nil
}

// Account returns the resulting image of key.
func (r *InstructionResult) Account(key solana.PublicKey) (accounts.Account, bool) {
	return findAccount(r.ResultingAccounts, key)
}

// absorb folds a later step of a chain into r.
func (r *InstructionResult) absorb(next InstructionResult) {
	r.ComputeUnitsConsumed += next.ComputeUnitsConsumed
	r.ExecutionTime += next.ExecutionTime
	r.ProgramResult = next.ProgramResult
	r.ReturnData = next.ReturnData
	r.ResultingAccounts = next.ResultingAccounts
	r.Logs = append(r.Logs, next.Logs...)
	r.RawResult = next.RawResult
}

// ContextResult is an InstructionResult whose accounts were absorbed by a
// Context instead of being returned.
type ContextResult struct {
	ComputeUnitsConsumed uint64
	ExecutionTime        time.Duration
	ProgramResult        error
	ReturnData           []byte
	Logs                 []string
}

func (r *ContextResult) Succeeded() bool {
	return r.ProgramResult == nil
}

func contextResult(r *InstructionResult) ContextResult {
	return ContextResult{
		ComputeUnitsConsumed: r.ComputeUnitsConsumed,
		ExecutionTime:        r.ExecutionTime,
		ProgramResult:        r.ProgramResult,
		ReturnData:           r.ReturnData,
		Logs:                 r.Logs,
	}
}

// TransactionResult is the outcome of instructions run inside one shared
// transaction context.
type TransactionResult struct {
	Instructions         []InstructionResult
	ProgramResult        error
	ComputeUnitsConsumed uint64
	ExecutionTime        time.Duration
	ResultingAccounts    []accounts.KeyedAccount

	// Fee is what the transaction would be charged. It is never debited.
	Fee uint64
}

func (r *TransactionResult) Succeeded() bool {
	return r.ProgramResult == nil
}

func (r *TransactionResult) Account(key solana.PublicKey) (accounts.Account, bool) {
	return findAccount(r.ResultingAccounts, key)
}

// instructionResult flattens r for checks written against single instructions.
func (r *TransactionResult) instructionResult() InstructionResult {
	out := InstructionResult{
		ComputeUnitsConsumed: r.ComputeUnitsConsumed,
		ExecutionTime:        r.ExecutionTime,
		ProgramResult:        r.ProgramResult,
		ResultingAccounts:    r.ResultingAccounts,
	}
	for _, ix := range r.Instructions {
		out.Logs = append(out.Logs, ix.Logs...)
	}
	if n := len(r.Instructions); n > 0 {
		out.ReturnData = r.Instructions[n-1].ReturnData
		out.RawResult = r.Instructions[n-1].RawResult
	}
	return out
}

func findAccount(accts []accounts.KeyedAccount, key solana.PublicKey) (accounts.Account, bool) {
	for _, ka := range accts {
		if ka.Key == key {
			return ka.Account, true
		}
	}
	return accounts.Account{}, false
}

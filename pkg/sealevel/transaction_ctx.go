package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/cu"
	"go.firedancer.io/harness/pkg/safemath"
)

const MaxReturnData = 1024

type TxReturnData struct {
	ProgramId solana.PublicKey
	Data      []byte
}

type TransactionCtx struct {
	Accounts             *TransactionAccounts
	InstructionTrace     []*InstructionCtx
	InstructionStack     []uint64
	ReturnData           TxReturnData
	MaxInvokeStackHeight uint64
	MaxInstructionTrace  uint64

	// InstructionDatas holds the data of every top-level instruction of the
	// transaction, for precompiles that reference sibling instructions.
	InstructionDatas [][]byte
}

func NewTransactionCtx(accts []accounts.KeyedAccount, budget cu.ComputeBudget) *TransactionCtx {
	budget = budget.WithDefaults()
	return &TransactionCtx{
		Accounts:             NewTransactionAccounts(accts),
		InstructionTrace:     []*InstructionCtx{new(InstructionCtx)},
		MaxInvokeStackHeight: budget.MaxInvokeStackHeight,
		MaxInstructionTrace:  budget.MaxInstructionTrace,
	}
}

func (txCtx *TransactionCtx) KeyOfAccountAtIndex(index uint64) (solana.PublicKey, error) {
	if index >= txCtx.Accounts.Len() {
		return solana.PublicKey{}, InstrErrNotEnoughAccountKeys
	}
	return txCtx.Accounts.Keys[index], nil
}

func (txCtx *TransactionCtx) IndexOfAccount(pubkey solana.PublicKey) (uint64, error) {
	for index, key := range txCtx.Accounts.Keys {
		if key == pubkey {
			return uint64(index), nil
		}
	}
	return 0, InstrErrMissingAccount
}

func (txCtx *TransactionCtx) InstructionCtxStackHeight() uint64 {
	return uint64(len(txCtx.InstructionStack))
}

// InstructionTraceLength counts the instructions pushed so far; the trace
// always carries one extra, not yet pushed, context at its end.
func (txCtx *TransactionCtx) InstructionTraceLength() uint64 {
	return uint64(len(txCtx.InstructionTrace) - 1)
}

func (txCtx *TransactionCtx) InstructionCtxAtIndexInTrace(idx uint64) (*InstructionCtx, error) {
	if idx >= uint64(len(txCtx.InstructionTrace)) {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionTrace[idx], nil
}

func (txCtx *TransactionCtx) InstructionCtxAtNestingLevel(level uint64) (*InstructionCtx, error) {
	if level >= txCtx.InstructionCtxStackHeight() {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionCtxAtIndexInTrace(txCtx.InstructionStack[level])
}

func (txCtx *TransactionCtx) CurrentInstructionCtx() (*InstructionCtx, error) {
	if txCtx.InstructionCtxStackHeight() == 0 {
		return nil, InstrErrCallDepth
	}
	return txCtx.InstructionCtxAtNestingLevel(txCtx.InstructionCtxStackHeight() - 1)
}

func (txCtx *TransactionCtx) NextInstructionCtx() (*InstructionCtx, error) {
	return txCtx.InstructionTrace[len(txCtx.InstructionTrace)-1], nil
}

func (txCtx *TransactionCtx) Push() error {
	nestingLevel := txCtx.InstructionCtxStackHeight()
	if nestingLevel >= txCtx.MaxInvokeStackHeight {
		return InstrErrCallDepth
	}
	if txCtx.InstructionTraceLength() >= txCtx.MaxInstructionTrace {
		return InstrErrMaxInstructionTraceLengthExceeded
	}

	next, _ := txCtx.NextInstructionCtx()
	next.StackHeight = nestingLevel + 1
	sum, err := txCtx.instructionAccountsLamportSum(next)
	if err != nil {
		return err
	}
	next.lamportsSum = sum

	if nestingLevel == 0 {
		txCtx.ReturnData = TxReturnData{}
	}

	indexInTrace := txCtx.InstructionTraceLength()
	txCtx.InstructionTrace = append(txCtx.InstructionTrace, new(InstructionCtx))
	txCtx.InstructionStack = append(txCtx.InstructionStack, indexInTrace)
	return nil
}

func (txCtx *TransactionCtx) Pop() error {
	if txCtx.InstructionCtxStackHeight() == 0 {
		return InstrErrCallDepth
	}

	current, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	var unbalanced bool
	sum, err := txCtx.instructionAccountsLamportSum(current)
	if err != nil || sum != current.lamportsSum {
		unbalanced = true
	}

	txCtx.InstructionStack = txCtx.InstructionStack[:len(txCtx.InstructionStack)-1]

	if unbalanced {
		return InstrErrUnbalancedInstruction
	}
	return nil
}

func (txCtx *TransactionCtx) instructionAccountsLamportSum(instrCtx *InstructionCtx) (uint64, error) {
	var sum uint64
	var err error
	for instrAcctIdx := range instrCtx.InstructionAccounts {
		isDup, _ := instrCtx.IsInstructionAccountDuplicate(uint64(instrAcctIdx))
		if isDup {
			continue
		}
		acct, acctErr := txCtx.Accounts.GetAccount(instrCtx.InstructionAccounts[instrAcctIdx].IndexInTransaction)
		if acctErr != nil {
			return 0, acctErr
		}
		sum, err = safemath.CheckedAddU64(sum, acct.Lamports)
		if err != nil {
			return 0, InstrErrArithmeticOverflow
		}
	}
	return sum, nil
}

func (txCtx *TransactionCtx) SetReturnData(programId solana.PublicKey, data []byte) error {
	if len(data) > MaxReturnData {
		return InstrErrInvalidInstructionData
	}
	txCtx.ReturnData = TxReturnData{ProgramId: programId, Data: append([]byte(nil), data...)}
	return nil
}

func (txCtx *TransactionCtx) GetReturnData() (solana.PublicKey, []byte) {
	return txCtx.ReturnData.ProgramId, txCtx.ReturnData.Data
}

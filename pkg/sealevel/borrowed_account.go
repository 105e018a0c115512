package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/safemath"
)

const MaxPermittedDataLength = 10 * 1024 * 1024

type BorrowedAccount struct {
	TxCtx              *TransactionCtx
	InstrCtx           *InstructionCtx
	IndexInTransaction uint64
	IndexInInstruction uint64
	Account            *accounts.Account
	dropped            bool
}

// Drop releases the borrow. Safe to call more than once.
func (acct *BorrowedAccount) Drop() {
	if acct.dropped {
		return
	}
	acct.dropped = true
	acct.TxCtx.Accounts.unborrow(acct.IndexInTransaction)
}

func (acct *BorrowedAccount) Key() solana.PublicKey {
	key, err := acct.TxCtx.KeyOfAccountAtIndex(acct.IndexInTransaction)
	if err != nil {
		panic("borrowed account outside of transaction accounts")
	}
	return key
}

func (acct *BorrowedAccount) Owner() solana.PublicKey {
	return acct.Account.Owner
}

func (acct *BorrowedAccount) Lamports() uint64 {
	return acct.Account.Lamports
}

func (acct *BorrowedAccount) Data() []byte {
	return acct.Account.Data
}

func (acct *BorrowedAccount) IsExecutable() bool {
	return acct.Account.Executable
}

func (acct *BorrowedAccount) Touch() error {
	return acct.TxCtx.Accounts.Touch(acct.IndexInTransaction)
}

func (acct *BorrowedAccount) IsSigner() bool {
	instrCtx := acct.InstrCtx
	if acct.IndexInInstruction < instrCtx.NumberOfProgramAccounts() {
		return false
	}
	isSigner, err := instrCtx.IsInstructionAccountSigner(acct.IndexInInstruction - instrCtx.NumberOfProgramAccounts())
	return err == nil && isSigner
}

func (acct *BorrowedAccount) IsWritable() bool {
	instrCtx := acct.InstrCtx
	if acct.IndexInInstruction < instrCtx.NumberOfProgramAccounts() {
		return false
	}
	writable, err := instrCtx.IsInstructionAccountWritable(acct.IndexInInstruction - instrCtx.NumberOfProgramAccounts())
	return err == nil && writable
}

func (acct *BorrowedAccount) IsOwnedByCurrentProgram() bool {
	lastProgramKey, err := acct.InstrCtx.LastProgramKey(acct.TxCtx)
	if err != nil {
		return false
	}
	return lastProgramKey == acct.Owner()
}

func (acct *BorrowedAccount) SetLamports(lamports uint64) error {
	if !acct.IsOwnedByCurrentProgram() && lamports < acct.Lamports() {
		return InstrErrExternalAccountLamportSpend
	}
	if !acct.IsWritable() {
		return InstrErrReadonlyLamportChange
	}
	if acct.IsExecutable() {
		return InstrErrExecutableLamportChange
	}
	if acct.Lamports() == lamports {
		return nil
	}
	err := acct.Touch()
	if err != nil {
		return err
	}
	acct.Account.Lamports = lamports
	return nil
}

func (acct *BorrowedAccount) CheckedAddLamports(lamports uint64) error {
	sum, err := safemath.CheckedAddU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.SetLamports(sum)
}

func (acct *BorrowedAccount) CheckedSubLamports(lamports uint64) error {
	diff, err := safemath.CheckedSubU64(acct.Lamports(), lamports)
	if err != nil {
		return InstrErrArithmeticOverflow
	}
	return acct.SetLamports(diff)
}

func (acct *BorrowedAccount) SetOwner(owner solana.PublicKey) error {
	if !acct.IsOwnedByCurrentProgram() || !acct.IsWritable() || acct.IsExecutable() {
		return InstrErrModifiedProgramId
	}
	if !isZeroed(acct.Data()) {
		return InstrErrModifiedProgramId
	}
	if acct.Owner() == owner {
		return nil
	}
	err := acct.Touch()
	if err != nil {
		return err
	}
	acct.Account.Owner = owner
	return nil
}

func (acct *BorrowedAccount) DataCanBeChanged() error {
	if acct.IsExecutable() {
		return InstrErrExecutableDataModified
	}
	if !acct.IsWritable() {
		return InstrErrReadonlyDataModified
	}
	if !acct.IsOwnedByCurrentProgram() {
		return InstrErrExternalAccountDataModified
	}
	return nil
}

func (acct *BorrowedAccount) CanDataBeResized(newLength uint64) error {
	oldLength := uint64(len(acct.Data()))
	if newLength != oldLength && !acct.IsOwnedByCurrentProgram() {
		return InstrErrAccountDataSizeChanged
	}
	if newLength > MaxPermittedDataLength {
		return InstrErrInvalidRealloc
	}
	return nil
}

func (acct *BorrowedAccount) SetDataLength(newLength uint64) error {
	err := acct.CanDataBeResized(newLength)
	if err != nil {
		return err
	}
	err = acct.DataCanBeChanged()
	if err != nil {
		return err
	}
	if uint64(len(acct.Data())) == newLength {
		return nil
	}
	err = acct.Touch()
	if err != nil {
		return err
	}
	data := make([]byte, newLength)
	copy(data, acct.Account.Data)
	acct.Account.Data = data
	return nil
}

func (acct *BorrowedAccount) SetData(data []byte) error {
	err := acct.CanDataBeResized(uint64(len(data)))
	if err != nil {
		return err
	}
	err = acct.DataCanBeChanged()
	if err != nil {
		return err
	}
	err = acct.Touch()
	if err != nil {
		return err
	}
	acct.Account.SetData(data)
	return nil
}

func isZeroed(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

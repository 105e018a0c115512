package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
)

// TransactionAccounts is the engine-held working set of one transaction.
// Accounts are private copies; nothing here aliases caller state.
type TransactionAccounts struct {
	Keys     []solana.PublicKey
	Accounts []*accounts.Account
	touched  []bool
	borrowed []bool
}

func NewTransactionAccounts(accts []accounts.KeyedAccount) *TransactionAccounts {
	txAccts := &TransactionAccounts{
		Keys:     make([]solana.PublicKey, 0, len(accts)),
		Accounts: make([]*accounts.Account, 0, len(accts)),
		touched:  make([]bool, len(accts)),
		borrowed: make([]bool, len(accts)),
	}
	for _, ka := range accts {
		acct := ka.Account.Clone()
		txAccts.Keys = append(txAccts.Keys, ka.Key)
		txAccts.Accounts = append(txAccts.Accounts, &acct)
	}
	return txAccts
}

func (txAccts *TransactionAccounts) Len() uint64 {
	return uint64(len(txAccts.Keys))
}

func (txAccts *TransactionAccounts) GetAccount(idx uint64) (*accounts.Account, error) {
	if idx >= txAccts.Len() {
		return nil, InstrErrMissingAccount
	}
	return txAccts.Accounts[idx], nil
}

func (txAccts *TransactionAccounts) Touch(idx uint64) error {
	if idx >= txAccts.Len() {
		return InstrErrNotEnoughAccountKeys
	}
	txAccts.touched[idx] = true
	return nil
}

func (txAccts *TransactionAccounts) Touched(idx uint64) bool {
	return idx < txAccts.Len() && txAccts.touched[idx]
}

func (txAccts *TransactionAccounts) borrow(idx uint64) (*accounts.Account, error) {
	if idx >= txAccts.Len() {
		return nil, InstrErrMissingAccount
	}
	if txAccts.borrowed[idx] {
		return nil, InstrErrAccountBorrowFailed
	}
	txAccts.borrowed[idx] = true
	return txAccts.Accounts[idx], nil
}

func (txAccts *TransactionAccounts) unborrow(idx uint64) {
	if idx < txAccts.Len() {
		txAccts.borrowed[idx] = false
	}
}

// KeyedAccounts returns copies of every account in transaction order.
func (txAccts *TransactionAccounts) KeyedAccounts() []accounts.KeyedAccount {
	out := make([]accounts.KeyedAccount, 0, len(txAccts.Keys))
	for i, key := range txAccts.Keys {
		out = append(out, accounts.KeyedAccount{Key: key, Account: txAccts.Accounts[i].Clone()})
	}
	return out
}

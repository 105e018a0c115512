// Package compile turns instructions plus an account source into the
// transaction layout the sealevel engine executes.
package compile

import (
	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/sealevel"
)

// Source supplies accounts by address.
type Source interface {
	Get(pubkey solana.PublicKey) (*accounts.Account, bool)
	DefaultFor(pubkey solana.PublicKey) accounts.Account
}

type listSource struct {
	byKey map[solana.PublicKey]accounts.Account
}

// FromList serves a flat account list. The first entry for an address wins;
// absent addresses default to the zero account.
func FromList(accts []accounts.KeyedAccount) Source {
	byKey := make(map[solana.PublicKey]accounts.Account, len(accts))
	for _, ka := range accts {
		if _, ok := byKey[ka.Key]; !ok {
			byKey[ka.Key] = ka.Account
		}
	}
	return &listSource{byKey: byKey}
}

func (s *listSource) Get(pubkey solana.PublicKey) (*accounts.Account, bool) {
	acct, ok := s.byKey[pubkey]
	if !ok {
		return nil, false
	}
	clone := acct.Clone()
	return &clone, true
}

func (s *listSource) DefaultFor(solana.PublicKey) accounts.Account {
	return accounts.Account{}
}

// FromStore serves accounts from a store, using its default policy.
func FromStore(store accounts.Store) Source {
	return store
}

// StubPolicy says what to put in a program's slot when the source does not
// hold the program account.
type StubPolicy struct {
	stub      bool
	loaderKey solana.PublicKey
}

// ExecutableStub fills the program slot with an empty executable account
// owned by loaderKey.
func ExecutableStub(loaderKey solana.PublicKey) StubPolicy {
	return StubPolicy{stub: true, loaderKey: loaderKey}
}

// NoStub falls back to the source's default account.
var NoStub = StubPolicy{}

func (p StubPolicy) account(source Source, programId solana.PublicKey) accounts.Account {
	if !p.stub {
		return source.DefaultFor(programId)
	}
	return accounts.Account{Owner: p.loaderKey, Executable: true}
}

type CompiledAccounts struct {
	ProgramIdIndex      uint64
	InstructionAccounts []sealevel.InstructionAccount
	TransactionAccounts []accounts.KeyedAccount
}

// Accounts compiles one instruction. It never fails; problems with the
// instruction surface when it executes.
func Accounts(ix sealevel.Instruction, source Source, stub StubPolicy) CompiledAccounts {
	km := KeyMapFromInstructions(ix)
	programIdIndex, _ := km.Position(ix.ProgramId)

	return CompiledAccounts{
		ProgramIdIndex:      uint64(programIdIndex),
		InstructionAccounts: km.InstructionAccounts(ix),
		TransactionAccounts: transactionAccounts(km, source, map[solana.PublicKey]StubPolicy{ix.ProgramId: stub}),
	}
}

type CompiledInstruction struct {
	ProgramId           solana.PublicKey
	ProgramIdIndex      uint64
	InstructionAccounts []sealevel.InstructionAccount
	Data                []byte
}

type CompiledTransaction struct {
	KeyMap              *KeyMap
	Instructions        []CompiledInstruction
	TransactionAccounts []accounts.KeyedAccount
}

// Transaction compiles instructions that share one transaction account
// list. stubs is keyed by program id; programs without an entry get NoStub.
func Transaction(ixs []sealevel.Instruction, source Source, stubs map[solana.PublicKey]StubPolicy) CompiledTransaction {
	km := KeyMapFromInstructions(ixs...)

	compiled := lo.Map(ixs, func(ix sealevel.Instruction, _ int) CompiledInstruction {
		programIdIndex, _ := km.Position(ix.ProgramId)
		return CompiledInstruction{
			ProgramId:           ix.ProgramId,
			ProgramIdIndex:      uint64(programIdIndex),
			InstructionAccounts: km.InstructionAccounts(ix),
			Data:                ix.Data,
		}
	})

	return CompiledTransaction{
		KeyMap:              km,
		Instructions:        compiled,
		TransactionAccounts: transactionAccounts(km, source, stubs),
	}
}

func transactionAccounts(km *KeyMap, source Source, stubs map[solana.PublicKey]StubPolicy) []accounts.KeyedAccount {
	return lo.Map(km.Keys(), func(key solana.PublicKey, _ int) accounts.KeyedAccount {
		if acct, ok := source.Get(key); ok {
			return accounts.KeyedAccount{Key: key, Account: *acct}
		}
		if stub, ok := stubs[key]; ok {
			return accounts.KeyedAccount{Key: key, Account: stub.account(source, key)}
		}
		return accounts.KeyedAccount{Key: key, Account: source.DefaultFor(key)}
	})
}

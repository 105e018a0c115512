package sealevel

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/cu"
	"go.firedancer.io/harness/pkg/features"
	"go.firedancer.io/harness/pkg/sysvar"
)

type testInvocation struct {
	txCtx *TransactionCtx
	args  ExecuteArgs
}

// newTestInvocation lays out accts as the transaction's accounts and points
// the instruction at them. The program must be present in accts.
func newTestInvocation(t *testing.T, ix Instruction, accts []accounts.KeyedAccount) testInvocation {
	txCtx := NewTransactionCtx(accts, cu.DefaultComputeBudget())

	programIdx, err := txCtx.IndexOfAccount(ix.ProgramId)
	require.NoError(t, err)

	instrAccts := make([]InstructionAccount, 0, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		idx, err := txCtx.IndexOfAccount(meta.Pubkey)
		require.NoError(t, err)
		callee := uint64(i)
		for j := 0; j < i; j++ {
			if ix.Accounts[j].Pubkey == meta.Pubkey {
				callee = uint64(j)
				break
			}
		}
		instrAccts = append(instrAccts, InstructionAccount{
			IndexInTransaction: idx,
			IndexInCaller:      idx,
			IndexInCallee:      callee,
			IsSigner:           meta.IsSigner,
			IsWritable:         meta.IsWritable,
		})
	}

	return testInvocation{
		txCtx: txCtx,
		args: ExecuteArgs{
			ProgramId:           ix.ProgramId,
			Data:                ix.Data,
			InstructionAccounts: instrAccts,
			ProgramIndex:        programIdx,
		},
	}
}

func testEnvironment(programs *ProgramCache) *Environment {
	return &Environment{
		LamportsPerSignature: 5000,
		Features:             features.AllEnabledFeatures(),
		Sysvars:              sysvar.NewSysvars(),
		Programs:             programs,
	}
}

func (inv testInvocation) run(rt *Runtime, programs *ProgramCache) ExecuteOutput {
	meter := cu.NewComputeMeterDefault()
	return rt.Execute(inv.txCtx, inv.args, testEnvironment(programs), &meter)
}

func systemAccount(lamports uint64) accounts.Account {
	return accounts.Account{Lamports: lamports, Owner: SystemProgramAddr}
}

func keyed(key solana.PublicKey, acct accounts.Account) accounts.KeyedAccount {
	return accounts.KeyedAccount{Key: key, Account: acct}
}

func systemProgramAccount(programs *ProgramCache) accounts.KeyedAccount {
	acct, _ := programs.ProgramAccount(SystemProgramAddr)
	return keyed(SystemProgramAddr, acct)
}

func lamportsOf(t *testing.T, out ExecuteOutput, key solana.PublicKey) uint64 {
	for _, ka := range out.WorkingSet {
		if ka.Key == key {
			return ka.Account.Lamports
		}
	}
	t.Fatalf("account %s not in working set", key)
	return 0
}

package compile

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/sealevel"
)

func newKeys(n int) []solana.PublicKey {
	keys := make([]solana.PublicKey, n)
	for i := range keys {
		keys[i] = solana.NewWallet().PublicKey()
	}
	return keys
}

func TestAccounts_Deterministic(t *testing.T) {
	keys := newKeys(3)
	programId := solana.NewWallet().PublicKey()
	ix := sealevel.Instruction{ProgramId: programId, Accounts: []sealevel.AccountMeta{
		{Pubkey: keys[0], IsSigner: true, IsWritable: true},
		{Pubkey: keys[1]},
		{Pubkey: keys[2], IsWritable: true},
	}}
	source := FromList([]accounts.KeyedAccount{
		{Key: keys[0], Account: accounts.Account{Lamports: 1, Data: []byte{1, 2}}},
		{Key: keys[2], Account: accounts.Account{Lamports: 3}},
	})

	first := Accounts(ix, source, ExecutableStub(sealevel.BpfLoaderAddr))
	second := Accounts(ix, source, ExecutableStub(sealevel.BpfLoaderAddr))
	assert.Equal(t, first, second)

	hashes := func(c CompiledAccounts) [][32]byte {
		var out [][32]byte
		for _, ka := range c.TransactionAccounts {
			out = append(out, accounts.Hash(ka.Key, &ka.Account))
		}
		return out
	}
	assert.Equal(t, hashes(first), hashes(second))
}

func TestAccounts_DedupAndPrivilegeUnion(t *testing.T) {
	x := solana.NewWallet().PublicKey()
	y := solana.NewWallet().PublicKey()
	programId := solana.NewWallet().PublicKey()
	ix := sealevel.Instruction{ProgramId: programId, Accounts: []sealevel.AccountMeta{
		{Pubkey: x},
		{Pubkey: y, IsSigner: true},
		{Pubkey: x, IsWritable: true},
	}}

	compiled := Accounts(ix, FromList(nil), NoStub)
	require.Len(t, compiled.TransactionAccounts, 3)
	assert.Equal(t, []solana.PublicKey{x, y, programId}, []solana.PublicKey{
		compiled.TransactionAccounts[0].Key,
		compiled.TransactionAccounts[1].Key,
		compiled.TransactionAccounts[2].Key,
	})

	require.Len(t, compiled.InstructionAccounts, 3)
	first, dup := compiled.InstructionAccounts[0], compiled.InstructionAccounts[2]
	assert.Equal(t, uint64(0), first.IndexInTransaction)
	assert.Equal(t, uint64(0), dup.IndexInTransaction)
	assert.Equal(t, uint64(0), dup.IndexInCallee)
	assert.True(t, first.IsWritable)
	assert.True(t, dup.IsWritable)
	assert.False(t, first.IsSigner)
	assert.True(t, compiled.InstructionAccounts[1].IsSigner)
	assert.Equal(t, uint64(1), compiled.InstructionAccounts[1].IndexInCallee)
}

func TestAccounts_ProgramSlot(t *testing.T) {
	keys := newKeys(2)
	programId := solana.NewWallet().PublicKey()

	t.Run("appended", func(t *testing.T) {
		ix := sealevel.Instruction{ProgramId: programId, Accounts: []sealevel.AccountMeta{{Pubkey: keys[0]}, {Pubkey: keys[1]}}}
		compiled := Accounts(ix, FromList(nil), ExecutableStub(sealevel.BpfLoaderUpgradeableAddr))
		assert.Equal(t, programId, compiled.TransactionAccounts[compiled.ProgramIdIndex].Key)
		assert.Equal(t, uint64(2), compiled.ProgramIdIndex)

		stub := compiled.TransactionAccounts[compiled.ProgramIdIndex].Account
		assert.Equal(t, accounts.Account{Owner: sealevel.BpfLoaderUpgradeableAddr, Executable: true}, stub)
	})

	t.Run("already referenced", func(t *testing.T) {
		ix := sealevel.Instruction{ProgramId: programId, Accounts: []sealevel.AccountMeta{{Pubkey: keys[0]}, {Pubkey: programId}}}
		compiled := Accounts(ix, FromList(nil), NoStub)
		assert.Equal(t, uint64(1), compiled.ProgramIdIndex)
		assert.Len(t, compiled.TransactionAccounts, 2)
		assert.Equal(t, programId, compiled.TransactionAccounts[compiled.ProgramIdIndex].Key)
		assert.Equal(t, accounts.Account{}, compiled.TransactionAccounts[compiled.ProgramIdIndex].Account)
	})

	t.Run("source wins over stub", func(t *testing.T) {
		onChain := accounts.Account{Lamports: 7, Owner: sealevel.BpfLoaderAddr, Executable: true, Data: []byte("elf")}
		ix := sealevel.Instruction{ProgramId: programId}
		compiled := Accounts(ix, FromList([]accounts.KeyedAccount{{Key: programId, Account: onChain}}), ExecutableStub(sealevel.LoaderV4Addr))
		assert.Equal(t, onChain, compiled.TransactionAccounts[0].Account)
	})
}

func TestAccounts_FromStoreUsesDefault(t *testing.T) {
	missing := solana.NewWallet().PublicKey()
	programId := solana.NewWallet().PublicKey()
	store := accounts.WithDefault(accounts.NewMemAccounts(), func(solana.PublicKey) accounts.Account {
		return accounts.Account{Lamports: 42, Owner: sealevel.SystemProgramAddr}
	})

	ix := sealevel.Instruction{ProgramId: programId, Accounts: []sealevel.AccountMeta{{Pubkey: missing}}}
	compiled := Accounts(ix, FromStore(store), ExecutableStub(sealevel.BpfLoaderAddr))
	assert.Equal(t, uint64(42), compiled.TransactionAccounts[0].Account.Lamports)
	assert.True(t, compiled.TransactionAccounts[1].Account.Executable)
}

func TestAccounts_ListCopiesAreIndependent(t *testing.T) {
	key := solana.NewWallet().PublicKey()
	accts := []accounts.KeyedAccount{{Key: key, Account: accounts.Account{Data: []byte{1}}}}
	compiled := Accounts(sealevel.Instruction{ProgramId: sealevel.SystemProgramAddr, Accounts: []sealevel.AccountMeta{{Pubkey: key}}}, FromList(accts), NoStub)
	compiled.TransactionAccounts[0].Account.Data[0] = 9
	assert.Equal(t, byte(1), accts[0].Account.Data[0])
}

func TestTransaction_FoldsKeysAcrossInstructions(t *testing.T) {
	a, b, c := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	program := solana.NewWallet().PublicKey()

	ixs := []sealevel.Instruction{
		sealevel.NewTransferInstruction(a, b, 1),
		sealevel.NewTransferInstruction(b, c, 1),
		{ProgramId: program, Accounts: []sealevel.AccountMeta{{Pubkey: a}}},
	}
	compiled := Transaction(ixs, FromList(nil), map[solana.PublicKey]StubPolicy{
		sealevel.SystemProgramAddr: ExecutableStub(sealevel.NativeLoaderAddr),
		program:                    ExecutableStub(sealevel.BpfLoaderAddr),
	})

	assert.Equal(t, []solana.PublicKey{a, b, sealevel.SystemProgramAddr, c, program}, compiled.KeyMap.Keys())
	require.Len(t, compiled.Instructions, 3)

	// b signs in the second instruction, so it is a signer everywhere
	assert.True(t, compiled.KeyMap.IsSigner(b))
	assert.True(t, compiled.Instructions[0].InstructionAccounts[1].IsSigner)
	assert.True(t, compiled.KeyMap.IsWritable(a))
	assert.False(t, compiled.KeyMap.IsWritable(program))

	for i, ci := range compiled.Instructions {
		assert.Equal(t, ixs[i].ProgramId, compiled.TransactionAccounts[ci.ProgramIdIndex].Key)
	}
	assert.Equal(t, sealevel.NativeLoaderAddr, compiled.TransactionAccounts[2].Account.Owner)
	assert.Equal(t, sealevel.BpfLoaderAddr, compiled.TransactionAccounts[4].Account.Owner)
	assert.Equal(t, accounts.Account{}, compiled.TransactionAccounts[3].Account)
}

func TestKeyMap_Position(t *testing.T) {
	km := NewKeyMap()
	a, b := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	assert.Equal(t, 0, km.Add(a, false, false))
	assert.Equal(t, 1, km.Add(b, true, false))
	assert.Equal(t, 0, km.Add(a, false, true))

	pos, ok := km.Position(b)
	assert.True(t, ok)
	assert.Equal(t, 1, pos)
	_, ok = km.Position(solana.NewWallet().PublicKey())
	assert.False(t, ok)
	assert.Equal(t, 2, km.Len())
}

package sealevel

import (
	"bytes"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/accounts"
)

func TestSystemProgram_Transfer(t *testing.T) {
	programs := NewProgramCache()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	ix := MustNewInstruction(system.NewTransferInstruction(200_000, from, to).Build())
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(from, systemAccount(1_000_000)),
		keyed(to, systemAccount(1_000_000)),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	require.NoError(t, out.Err)
	assert.Equal(t, uint64(800_000), lamportsOf(t, out, from))
	assert.Equal(t, uint64(1_200_000), lamportsOf(t, out, to))
	assert.Equal(t, uint64(CUSystemProgramDefaultComputeUnits), out.ComputeUnits)
	assert.Contains(t, out.Logs, "Program 11111111111111111111111111111111 invoke [1]")
	assert.Contains(t, out.Logs, "Program 11111111111111111111111111111111 success")
}

func TestSystemProgram_TransferMatchesLocalBuilder(t *testing.T) {
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	ours := NewTransferInstruction(from, to, 42)
	theirs := MustNewInstruction(system.NewTransferInstruction(42, from, to).Build())
	assert.Equal(t, theirs, ours)
}

func TestSystemProgram_TransferInsufficientFunds(t *testing.T) {
	programs := NewProgramCache()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	ix := NewTransferInstruction(from, to, 1_000)
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(from, accounts.Account{}),
		keyed(to, systemAccount(0)),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, SystemProgErrResultWithNegativeLamports)
	code, custom := TranslateErrToInstrErrCode(out.Err)
	assert.Equal(t, InstrErrCodeCustom, code)
	assert.Equal(t, uint32(1), custom)
}

func TestSystemProgram_TransferMissingSigner(t *testing.T) {
	programs := NewProgramCache()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	ix := NewTransferInstruction(from, to, 1_000)
	ix.Accounts[0].IsSigner = false
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(from, systemAccount(10_000)),
		keyed(to, systemAccount(0)),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrMissingRequiredSignature)
}

func TestSystemProgram_TransferFromAccountWithData(t *testing.T) {
	programs := NewProgramCache()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	acct := systemAccount(10_000)
	acct.Data = []byte{1}
	inv := newTestInvocation(t, NewTransferInstruction(from, to, 1), []accounts.KeyedAccount{
		keyed(from, acct),
		keyed(to, systemAccount(0)),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrInvalidArgument)
}

func TestSystemProgram_CreateAccount(t *testing.T) {
	programs := NewProgramCache()
	payer := solana.NewWallet().PublicKey()
	newAcct := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	ix := MustNewInstruction(system.NewCreateAccountInstruction(50_000, 64, owner, payer, newAcct).Build())
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(payer, systemAccount(100_000)),
		keyed(newAcct, accounts.Account{Owner: SystemProgramAddr}),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	require.NoError(t, out.Err)
	assert.Equal(t, uint64(50_000), lamportsOf(t, out, payer))
	for _, ka := range out.WorkingSet {
		if ka.Key == newAcct {
			assert.Equal(t, uint64(50_000), ka.Account.Lamports)
			assert.Equal(t, owner, ka.Account.Owner)
			assert.Len(t, ka.Account.Data, 64)
		}
	}
}

func TestSystemProgram_CreateAccountAlreadyInUse(t *testing.T) {
	programs := NewProgramCache()
	payer := solana.NewWallet().PublicKey()
	newAcct := solana.NewWallet().PublicKey()

	ix := MustNewInstruction(system.NewCreateAccountInstruction(1, 0, SystemProgramAddr, payer, newAcct).Build())
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(payer, systemAccount(100)),
		keyed(newAcct, systemAccount(1)),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, SystemProgErrAccountAlreadyInUse)
}

func TestSystemProgram_AssignAndAllocate(t *testing.T) {
	programs := NewProgramCache()
	acct := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	allocate := MustNewInstruction(system.NewAllocateInstruction(10, acct).Build())
	inv := newTestInvocation(t, allocate, []accounts.KeyedAccount{
		keyed(acct, systemAccount(1)),
		systemProgramAccount(programs),
	})
	out := inv.run(&Runtime{}, programs)
	require.NoError(t, out.Err)
	assert.Len(t, out.WorkingSet[0].Account.Data, 10)

	assign := MustNewInstruction(system.NewAssignInstruction(owner, acct).Build())
	inv = newTestInvocation(t, assign, []accounts.KeyedAccount{
		keyed(acct, systemAccount(1)),
		systemProgramAccount(programs),
	})
	out = inv.run(&Runtime{}, programs)
	require.NoError(t, out.Err)
	assert.Equal(t, owner, out.WorkingSet[0].Account.Owner)
}

func TestSystemProgram_TransferWithSeed(t *testing.T) {
	programs := NewProgramCache()
	base := solana.NewWallet().PublicKey()
	owner := SystemProgramAddr
	from, err := solana.CreateWithSeed(base, "seed", owner)
	require.NoError(t, err)
	to := solana.NewWallet().PublicKey()

	buf := new(bytes.Buffer)
	encoder := bin.NewBinEncoder(buf)
	require.NoError(t, encoder.WriteUint32(SystemProgramInstrTypeTransferWithSeed, bin.LE))
	require.NoError(t, encoder.WriteUint64(500, bin.LE))
	require.NoError(t, encoder.WriteRustString("seed"))
	require.NoError(t, encoder.WriteBytes(owner[:], false))
	ix := Instruction{
		ProgramId: SystemProgramAddr,
		Accounts: []AccountMeta{
			{Pubkey: from, IsWritable: true},
			{Pubkey: base, IsSigner: true},
			{Pubkey: to, IsWritable: true},
		},
		Data: buf.Bytes(),
	}
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(from, systemAccount(1_000)),
		keyed(base, systemAccount(0)),
		keyed(to, systemAccount(0)),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	require.NoError(t, out.Err)
	assert.Equal(t, uint64(500), lamportsOf(t, out, from))
	assert.Equal(t, uint64(500), lamportsOf(t, out, to))
}

func TestSystemProgram_InvalidInstructionData(t *testing.T) {
	programs := NewProgramCache()
	from := solana.NewWallet().PublicKey()
	ix := Instruction{ProgramId: SystemProgramAddr, Accounts: []AccountMeta{{Pubkey: from, IsSigner: true, IsWritable: true}}, Data: []byte{0xff}}
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(from, systemAccount(1)),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrInvalidInstructionData)
}

type systemData struct {
	buf *bytes.Buffer
	enc *bin.Encoder
}

func newSystemData(t *testing.T, kind uint32) *systemData {
	d := &systemData{buf: new(bytes.Buffer)}
	d.enc = bin.NewBinEncoder(d.buf)
	require.NoError(t, d.enc.WriteUint32(kind, bin.LE))
	return d
}

func (d *systemData) key(t *testing.T, k solana.PublicKey) *systemData {
	require.NoError(t, d.enc.WriteBytes(k[:], false))
	return d
}

func (d *systemData) u64(t *testing.T, v uint64) *systemData {
	require.NoError(t, d.enc.WriteUint64(v, bin.LE))
	return d
}

func (d *systemData) seed(t *testing.T, s string) *systemData {
	require.NoError(t, d.enc.WriteRustString(s))
	return d
}

func TestSystemProgram_CreateAccountWithSeed(t *testing.T) {
	programs := NewProgramCache()
	payer := solana.NewWallet().PublicKey()
	base := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	created, err := solana.CreateWithSeed(base, "vault", owner)
	require.NoError(t, err)

	data := newSystemData(t, SystemProgramInstrTypeCreateAccountWithSeed).
		key(t, base).seed(t, "vault").u64(t, 2_000).u64(t, 8).key(t, owner)
	ix := Instruction{
		ProgramId: SystemProgramAddr,
		Accounts: []AccountMeta{
			{Pubkey: payer, IsSigner: true, IsWritable: true},
			{Pubkey: created, IsWritable: true},
			{Pubkey: base, IsSigner: true},
		},
		Data: data.buf.Bytes(),
	}
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(payer, systemAccount(5_000)),
		keyed(created, accounts.Account{Owner: SystemProgramAddr}),
		keyed(base, systemAccount(0)),
		systemProgramAccount(programs),
	})

	out := inv.run(&Runtime{}, programs)
	require.NoError(t, out.Err)
	assert.Equal(t, uint64(3_000), lamportsOf(t, out, payer))
	for _, ka := range out.WorkingSet {
		if ka.Key == created {
			assert.Equal(t, uint64(2_000), ka.Account.Lamports)
			assert.Equal(t, owner, ka.Account.Owner)
			assert.Len(t, ka.Account.Data, 8)
		}
	}
}

func TestSystemProgram_SeededAllocateAndAssign(t *testing.T) {
	programs := NewProgramCache()
	base := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()
	addr, err := solana.CreateWithSeed(base, "seed", owner)
	require.NoError(t, err)

	run := func(data []byte, baseSigns bool) ExecuteOutput {
		ix := Instruction{
			ProgramId: SystemProgramAddr,
			Accounts: []AccountMeta{
				{Pubkey: addr, IsWritable: true},
				{Pubkey: base, IsSigner: baseSigns},
			},
			Data: data,
		}
		return newTestInvocation(t, ix, []accounts.KeyedAccount{
			keyed(addr, systemAccount(1)),
			keyed(base, systemAccount(0)),
			systemProgramAccount(programs),
		}).run(&Runtime{}, programs)
	}

	allocate := newSystemData(t, SystemProgramInstrTypeAllocateWithSeed).
		key(t, base).seed(t, "seed").u64(t, 16).key(t, owner).buf.Bytes()
	out := run(allocate, true)
	require.NoError(t, out.Err)
	assert.Len(t, out.WorkingSet[0].Account.Data, 16)
	assert.Equal(t, owner, out.WorkingSet[0].Account.Owner)

	assign := newSystemData(t, SystemProgramInstrTypeAssignWithSeed).
		key(t, base).seed(t, "seed").key(t, owner).buf.Bytes()
	out = run(assign, true)
	require.NoError(t, out.Err)
	assert.Equal(t, owner, out.WorkingSet[0].Account.Owner)

	out = run(assign, false)
	assert.ErrorIs(t, out.Err, InstrErrMissingRequiredSignature, "the base authorizes a seeded address")

	wrongSeed := newSystemData(t, SystemProgramInstrTypeAssignWithSeed).
		key(t, base).seed(t, "other").key(t, owner).buf.Bytes()
	out = run(wrongSeed, true)
	assert.ErrorIs(t, out.Err, SystemProgErrAddressWithSeedMismatch)
}

func TestSystemProgram_UnsupportedAndShortInstructions(t *testing.T) {
	programs := NewProgramCache()
	acct := solana.NewWallet().PublicKey()
	run := func(data []byte, metas ...AccountMeta) error {
		ix := Instruction{ProgramId: SystemProgramAddr, Accounts: metas, Data: data}
		return newTestInvocation(t, ix, []accounts.KeyedAccount{
			keyed(acct, systemAccount(1)),
			systemProgramAccount(programs),
		}).run(&Runtime{}, programs).Err
	}
	signer := AccountMeta{Pubkey: acct, IsSigner: true, IsWritable: true}

	nonce := newSystemData(t, SystemProgramInstrTypeAdvanceNonceAccount).buf.Bytes()
	assert.ErrorIs(t, run(nonce, signer), InstrErrInvalidInstructionData)

	truncated := newSystemData(t, SystemProgramInstrTypeCreateAccount).u64(t, 1).buf.Bytes()
	assert.ErrorIs(t, run(truncated, signer), InstrErrInvalidInstructionData)

	transfer := newSystemData(t, SystemProgramInstrTypeTransfer).u64(t, 1).buf.Bytes()
	assert.ErrorIs(t, run(transfer, signer), InstrErrNotEnoughAccountKeys)
}

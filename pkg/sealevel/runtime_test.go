package sealevel

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"math"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/cu"
)

func addTestBuiltin(programs *ProgramCache, fn BuiltinFunc) (solana.PublicKey, accounts.KeyedAccount) {
	id := solana.NewWallet().PublicKey()
	programs.AddBuiltin(Builtin{ProgramId: id, Name: "test_builtin", Entrypoint: fn})
	acct, _ := programs.ProgramAccount(id)
	return id, keyed(id, acct)
}

func TestRuntime_NativeInvokeTransfer(t *testing.T) {
	programs := NewProgramCache()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	callerId, callerAcct := addTestBuiltin(programs, func(execCtx *ExecutionCtx) error {
		return execCtx.NativeInvoke(NewTransferInstruction(from, to, 300), nil)
	})

	ix := Instruction{ProgramId: callerId, Accounts: []AccountMeta{
		{Pubkey: from, IsSigner: true, IsWritable: true},
		{Pubkey: to, IsWritable: true},
		{Pubkey: SystemProgramAddr},
	}}
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(from, systemAccount(1_000)),
		keyed(to, systemAccount(0)),
		systemProgramAccount(programs),
		callerAcct,
	})

	out := inv.run(&Runtime{}, programs)
	require.NoError(t, out.Err)
	assert.Equal(t, uint64(700), lamportsOf(t, out, from))
	assert.Equal(t, uint64(300), lamportsOf(t, out, to))
	assert.Equal(t, uint64(CUInvokeUnits+CUSystemProgramDefaultComputeUnits), out.ComputeUnits)
	assert.Contains(t, out.Logs, "Program 11111111111111111111111111111111 invoke [2]")
	assert.Equal(t, uint64(2), inv.txCtx.InstructionTraceLength())
}

func TestRuntime_NativeInvokePrivilegeEscalation(t *testing.T) {
	programs := NewProgramCache()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()

	callerId, callerAcct := addTestBuiltin(programs, func(execCtx *ExecutionCtx) error {
		return execCtx.NativeInvoke(NewTransferInstruction(from, to, 300), nil)
	})

	// from is not signed by the outer instruction
	ix := Instruction{ProgramId: callerId, Accounts: []AccountMeta{
		{Pubkey: from, IsWritable: true},
		{Pubkey: to, IsWritable: true},
		{Pubkey: SystemProgramAddr},
	}}
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(from, systemAccount(1_000)),
		keyed(to, systemAccount(0)),
		systemProgramAccount(programs),
		callerAcct,
	})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrPrivilegeEscalation)
}

func TestRuntime_UnbalancedInstruction(t *testing.T) {
	programs := NewProgramCache()
	var programId solana.PublicKey
	programId, programAcct := addTestBuiltin(programs, func(execCtx *ExecutionCtx) error {
		txCtx := execCtx.TransactionContext
		instrCtx, err := txCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		acct, err := instrCtx.BorrowInstructionAccount(txCtx, 0)
		if err != nil {
			return err
		}
		defer acct.Drop()
		return acct.CheckedAddLamports(1)
	})

	owned := solana.NewWallet().PublicKey()
	ix := Instruction{ProgramId: programId, Accounts: []AccountMeta{{Pubkey: owned, IsWritable: true}}}
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{
		keyed(owned, accounts.Account{Lamports: 10, Owner: programId}),
		programAcct,
	})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrUnbalancedInstruction)
}

func TestRuntime_CallDepth(t *testing.T) {
	programs := NewProgramCache()
	var programId solana.PublicKey
	programId, programAcct := addTestBuiltin(programs, func(execCtx *ExecutionCtx) error {
		return execCtx.NativeInvoke(Instruction{ProgramId: programId, Accounts: []AccountMeta{{Pubkey: programId}}}, nil)
	})

	ix := Instruction{ProgramId: programId, Accounts: []AccountMeta{{Pubkey: programId}}}
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{programAcct})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrCallDepth)
}

func TestRuntime_Reentrancy(t *testing.T) {
	programs := NewProgramCache()
	var a, b solana.PublicKey
	a, aAcct := addTestBuiltin(programs, func(execCtx *ExecutionCtx) error {
		return execCtx.NativeInvoke(Instruction{ProgramId: b, Accounts: []AccountMeta{{Pubkey: a}, {Pubkey: b}}}, nil)
	})
	b, bAcct := addTestBuiltin(programs, func(execCtx *ExecutionCtx) error {
		return execCtx.NativeInvoke(Instruction{ProgramId: a, Accounts: []AccountMeta{{Pubkey: a}, {Pubkey: b}}}, nil)
	})

	ix := Instruction{ProgramId: a, Accounts: []AccountMeta{{Pubkey: a}, {Pubkey: b}}}
	inv := newTestInvocation(t, ix, []accounts.KeyedAccount{aAcct, bAcct})

	out := inv.run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrReentrancyNotAllowed)
}

func TestRuntime_ComputeBudgetExceeded(t *testing.T) {
	programs := NewProgramCache()
	from := solana.NewWallet().PublicKey()
	to := solana.NewWallet().PublicKey()
	inv := newTestInvocation(t, NewTransferInstruction(from, to, 1), []accounts.KeyedAccount{
		keyed(from, systemAccount(10)),
		keyed(to, systemAccount(0)),
		systemProgramAccount(programs),
	})

	meter := cu.NewComputeMeter(100)
	out := (&Runtime{}).Execute(inv.txCtx, inv.args, testEnvironment(programs), &meter)
	assert.ErrorIs(t, out.Err, InstrErrComputationalBudgetExceeded)
	assert.Equal(t, uint64(100), out.ComputeUnits)
}

type recordingVM struct {
	called []solana.PublicKey
	err    error
}

func (vm *recordingVM) Execute(execCtx *ExecutionCtx, program *ProgramEntry) error {
	vm.called = append(vm.called, program.ProgramId)
	if vm.err != nil {
		return vm.err
	}
	return execCtx.TransactionContext.SetReturnData(program.ProgramId, program.Elf[:4])
}

func TestRuntime_BytecodeProgram(t *testing.T) {
	programs := NewProgramCache()
	programId := solana.NewWallet().PublicKey()
	programs.AddProgram(programId, BpfLoaderAddr, []byte("\x7fELF-program"))
	programAcct, ok := programs.ProgramAccount(programId)
	require.True(t, ok)

	ix := Instruction{ProgramId: programId}
	accts := []accounts.KeyedAccount{keyed(programId, programAcct)}

	t.Run("without vm", func(t *testing.T) {
		out := newTestInvocation(t, ix, accts).run(&Runtime{}, programs)
		assert.ErrorIs(t, out.Err, InstrErrUnsupportedProgramId)
	})

	t.Run("with vm", func(t *testing.T) {
		vm := new(recordingVM)
		out := newTestInvocation(t, ix, accts).run(&Runtime{VM: vm}, programs)
		require.NoError(t, out.Err)
		assert.Equal(t, []solana.PublicKey{programId}, vm.called)
		assert.Equal(t, programId, out.ReturnData.ProgramId)
		assert.Equal(t, []byte("\x7fELF"), out.ReturnData.Data)
	})

	t.Run("vm error", func(t *testing.T) {
		vm := &recordingVM{err: CustomError(7)}
		out := newTestInvocation(t, ix, accts).run(&Runtime{VM: vm}, programs)
		assert.ErrorIs(t, out.Err, CustomError(7))
	})
}

func TestRuntime_LoaderManagementUnsupported(t *testing.T) {
	programs := NewProgramCache()
	loaderAcct, _ := programs.ProgramAccount(BpfLoaderUpgradeableAddr)
	ix := Instruction{ProgramId: BpfLoaderUpgradeableAddr}
	out := newTestInvocation(t, ix, []accounts.KeyedAccount{keyed(BpfLoaderUpgradeableAddr, loaderAcct)}).run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrUnsupportedProgramId)
	assert.Equal(t, uint64(CUUpgradeableLoaderComputeUnits), out.ComputeUnits)
}

func newEd25519Instruction(t *testing.T, priv ed25519.PrivateKey, msg []byte) Instruction {
	pub := priv.Public().(ed25519.PublicKey)
	sig := ed25519.Sign(priv, msg)

	const dataStart = SignatureOffsetStarts + SignatureOffsetsSerializedSize
	offsets := Ed25519SignatureOffsets{
		PublicKeyOffset:           dataStart,
		PublicKeyInstructionIndex: math.MaxUint16,
		SignatureOffset:           dataStart + PubkeySerializedSize,
		SignatureInstructionIndex: math.MaxUint16,
		MessageDataOffset:         dataStart + PubkeySerializedSize + SignatureSerializedSize,
		MessageDataSize:           uint16(len(msg)),
		MessageInstructionIndex:   math.MaxUint16,
	}

	data := []byte{1, 0}
	buf := new(bytes.Buffer)
	require.NoError(t, offsets.MarshalWithEncoder(bin.NewBinEncoder(buf)))
	data = append(data, buf.Bytes()...)
	data = append(data, pub...)
	data = append(data, sig...)
	data = append(data, msg...)
	return Instruction{ProgramId: Ed25519PrecompileAddr, Data: data}
}

func TestRuntime_Ed25519Precompile(t *testing.T) {
	programs := NewProgramCache()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	precompileAcct := keyed(Ed25519PrecompileAddr, accounts.Account{Owner: NativeLoaderAddr, Executable: true})

	ix := newEd25519Instruction(t, priv, []byte("hello harness"))
	out := newTestInvocation(t, ix, []accounts.KeyedAccount{precompileAcct}).run(&Runtime{}, programs)
	require.NoError(t, out.Err)
	assert.Zero(t, out.ComputeUnits)

	ix.Data[len(ix.Data)-1] ^= 0xff
	out = newTestInvocation(t, ix, []accounts.KeyedAccount{precompileAcct}).run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, PrecompileErrInvalidSignature)

	out = newTestInvocation(t, Instruction{ProgramId: Ed25519PrecompileAddr, Data: []byte{1}}, []accounts.KeyedAccount{precompileAcct}).run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, PrecompileErrInvalidInstructionDataSize)
}

func TestRuntime_UnsupportedPrecompile(t *testing.T) {
	programs := NewProgramCache()
	acct := keyed(Secp256kPrecompileAddr, accounts.Account{Owner: NativeLoaderAddr, Executable: true})
	out := newTestInvocation(t, Instruction{ProgramId: Secp256kPrecompileAddr}, []accounts.KeyedAccount{acct}).run(&Runtime{}, programs)
	assert.ErrorIs(t, out.Err, InstrErrUnsupportedProgramId)
}

func TestErrorCodes(t *testing.T) {
	code, _ := TranslateErrToInstrErrCode(InstrErrMissingRequiredSignature)
	assert.Equal(t, 7, code)
	code, _ = TranslateErrToInstrErrCode(InstrErrComputationalBudgetExceeded)
	assert.Equal(t, 37, code)
	code, _ = TranslateErrToInstrErrCode(errors.New("something else"))
	assert.Equal(t, 0, code)

	assert.Equal(t, InstrErrCallDepth, InstrErrFromCode(31, 0))
	assert.Equal(t, CustomError(9), InstrErrFromCode(InstrErrCodeCustom, 9))
	assert.Equal(t, InstrErrInvalidError, InstrErrFromCode(1000, 0))
	assert.Equal(t, "InstrErrCustom(9)", CustomError(9).Error())
}

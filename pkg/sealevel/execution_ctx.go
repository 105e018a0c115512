package sealevel

import (
	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/cu"
	"go.firedancer.io/harness/pkg/features"
	"go.firedancer.io/harness/pkg/sysvar"
	"k8s.io/klog/v2"
)

// VM runs bytecode programs on behalf of the loader builtins.
type VM interface {
	Execute(execCtx *ExecutionCtx, program *ProgramEntry) error
}

type ExecutionCtx struct {
	Log                  Logger
	TransactionContext   *TransactionCtx
	ComputeMeter         cu.ComputeMeter
	Features             *features.Features
	Sysvars              *sysvar.Sysvars
	Programs             *ProgramCache
	VM                   VM
	Blockhash            [32]byte
	LamportsPerSignature uint64
}

func (execCtx *ExecutionCtx) PrepareInstruction(ix Instruction, signers []solana.PublicKey) ([]InstructionAccount, []uint64, error) {
	txCtx := execCtx.TransactionContext

	ixCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return nil, nil, err
	}

	dedupInstructionAccounts := make([]InstructionAccount, 0)
	duplicateIndices := make([]uint64, 0)

	for instructionAcctIndex, accountMeta := range ix.Accounts {
		indexInTx, err := txCtx.IndexOfAccount(accountMeta.Pubkey)
		if err != nil {
			klog.Errorf("instruction references unknown account %s", accountMeta.Pubkey)
			return nil, nil, err
		}

		duplicateIndex := -1
		for index, instrAcct := range dedupInstructionAccounts {
			if instrAcct.IndexInTransaction == indexInTx {
				duplicateIndex = index
				break
			}
		}

		if duplicateIndex != -1 {
			duplicateIndices = append(duplicateIndices, uint64(duplicateIndex))
			dedupInstructionAccounts[duplicateIndex].IsSigner = dedupInstructionAccounts[duplicateIndex].IsSigner || accountMeta.IsSigner
			dedupInstructionAccounts[duplicateIndex].IsWritable = dedupInstructionAccounts[duplicateIndex].IsWritable || accountMeta.IsWritable
		} else {
			indexInCaller, err := ixCtx.IndexOfInstructionAccount(txCtx, accountMeta.Pubkey)
			if err != nil {
				klog.Errorf("instruction references account %s not passed to the caller", accountMeta.Pubkey)
				return nil, nil, err
			}
			duplicateIndices = append(duplicateIndices, uint64(len(dedupInstructionAccounts)))

			dedupInstructionAccounts = append(dedupInstructionAccounts, InstructionAccount{
				IndexInTransaction: indexInTx,
				IndexInCaller:      indexInCaller,
				IndexInCallee:      uint64(instructionAcctIndex),
				IsSigner:           accountMeta.IsSigner,
				IsWritable:         accountMeta.IsWritable,
			})
		}
	}

	for _, instructionAcct := range dedupInstructionAccounts {
		borrowedAcct, err := ixCtx.BorrowInstructionAccount(txCtx, instructionAcct.IndexInCaller)
		if err != nil {
			return nil, nil, err
		}

		// read-only in the caller cannot become writable in the callee
		if instructionAcct.IsWritable && !borrowedAcct.IsWritable() {
			borrowedAcct.Drop()
			klog.Errorf("%s: writable privilege escalated", borrowedAcct.Key())
			return nil, nil, InstrErrPrivilegeEscalation
		}

		// a callee signer must be signed in the caller or by the calling program
		presentInSigners := false
		for _, addr := range signers {
			if addr == borrowedAcct.Key() {
				presentInSigners = true
				break
			}
		}
		if instructionAcct.IsSigner && !(borrowedAcct.IsSigner() || presentInSigners) {
			borrowedAcct.Drop()
			klog.Errorf("%s: signer privilege escalated", borrowedAcct.Key())
			return nil, nil, InstrErrPrivilegeEscalation
		}
		borrowedAcct.Drop()
	}

	instructionAccounts := make([]InstructionAccount, 0, len(duplicateIndices))
	for _, duplicateIndex := range duplicateIndices {
		instructionAccounts = append(instructionAccounts, dedupInstructionAccounts[duplicateIndex])
	}

	calleeProgramId := ix.ProgramId
	programAcctIdx, err := ixCtx.IndexOfInstructionAccount(txCtx, calleeProgramId)
	if err != nil {
		klog.Errorf("unknown program %s", calleeProgramId)
		return nil, nil, err
	}

	borrowedProgramAcct, err := ixCtx.BorrowInstructionAccount(txCtx, programAcctIdx)
	if err != nil {
		return nil, nil, err
	}
	defer borrowedProgramAcct.Drop()

	if !borrowedProgramAcct.IsExecutable() && !IsPrecompile(calleeProgramId) {
		klog.Errorf("account %s is not executable", calleeProgramId)
		return nil, nil, InstrErrAccountNotExecutable
	}

	return instructionAccounts, []uint64{borrowedProgramAcct.IndexInTransaction}, nil
}

func (execCtx *ExecutionCtx) ProcessInstruction(instrData []byte, instructionAccts []InstructionAccount, programIndices []uint64) error {
	nextInstrCtx, err := execCtx.TransactionContext.NextInstructionCtx()
	if err != nil {
		return err
	}

	nextInstrCtx.Configure(programIndices, instructionAccts, instrData)

	err = execCtx.Push()
	if err != nil {
		return err
	}

	programId, _ := nextInstrCtx.LastProgramKey(execCtx.TransactionContext)
	logInvoke(execCtx.Log, programId, nextInstrCtx.StackHeight)

	err1 := execCtx.ExecuteInstruction()
	err2 := execCtx.Pop()

	if err1 == nil {
		err1 = err2
	}
	if err1 != nil {
		logFailure(execCtx.Log, programId, err1)
		return err1
	}
	logSuccess(execCtx.Log, programId)
	return nil
}

func (execCtx *ExecutionCtx) ExecuteInstruction() error {
	txCtx := execCtx.TransactionContext
	instrCtx, err := txCtx.CurrentInstructionCtx()
	if err != nil {
		return err
	}

	borrowedRootAccount, err := instrCtx.BorrowLastProgramAccount(txCtx)
	if err != nil {
		klog.V(2).Infof("BorrowProgramAccount failed: %s", err)
		return InstrErrUnsupportedProgramId
	}
	programId := borrowedRootAccount.Key()
	ownerId := borrowedRootAccount.Owner()
	borrowedRootAccount.Drop()

	if IsPrecompile(programId) {
		return execCtx.executePrecompile(programId, instrCtx.Data)
	}

	var builtinId solana.PublicKey
	if ownerId == NativeLoaderAddr {
		builtinId = programId
	} else {
		builtinId = ownerId
	}

	klog.V(2).Infof("executing %s via builtin %s", programId, builtinId)
	entry, ok := execCtx.Programs.Load(builtinId)
	if !ok || entry.Builtin == nil {
		return InstrErrUnsupportedProgramId
	}
	return entry.Builtin(execCtx)
}

func (execCtx *ExecutionCtx) executePrecompile(programId solana.PublicKey, data []byte) error {
	instructionDatas := execCtx.TransactionContext.InstructionDatas
	if len(instructionDatas) == 0 {
		instructionDatas = [][]byte{data}
	}
	switch programId {
	case Ed25519PrecompileAddr:
		return Ed25519ProgramExecute(data, instructionDatas)
	}
	klog.Errorf("precompile %s is not supported", programId)
	return InstrErrUnsupportedProgramId
}

func (execCtx *ExecutionCtx) Push() error {
	txCtx := execCtx.TransactionContext

	instrCtx, err := txCtx.NextInstructionCtx()
	if err != nil {
		return err
	}

	programId, err := instrCtx.LastProgramKey(txCtx)
	if err != nil {
		return InstrErrUnsupportedProgramId
	}

	if txCtx.InstructionCtxStackHeight() != 0 {
		var contains bool
		for level := uint64(0); level < txCtx.InstructionCtxStackHeight(); level++ {
			ic, err := txCtx.InstructionCtxAtNestingLevel(level)
			if err != nil {
				continue
			}
			key, err := ic.LastProgramKey(txCtx)
			if err == nil && key == programId {
				contains = true
				break
			}
		}

		var isLast bool
		ic, err := txCtx.CurrentInstructionCtx()
		if err != nil {
			return err
		}
		key, err := ic.LastProgramKey(txCtx)
		if err == nil && key == programId {
			isLast = true
		}

		if contains && !isLast {
			return InstrErrReentrancyNotAllowed
		}
	}

	return txCtx.Push()
}

func (execCtx *ExecutionCtx) Pop() error {
	return execCtx.TransactionContext.Pop()
}

func (execCtx *ExecutionCtx) StackHeight() uint64 {
	return execCtx.TransactionContext.InstructionCtxStackHeight()
}

// NativeInvoke runs instruction as a cross-program call from the currently
// executing program. signers are addresses the caller signs for.
func (execCtx *ExecutionCtx) NativeInvoke(instruction Instruction, signers []solana.PublicKey) error {
	err := execCtx.ComputeMeter.Consume(CUInvokeUnits)
	if err != nil {
		return err
	}

	instrAccts, programIndices, err := execCtx.PrepareInstruction(instruction, signers)
	if err != nil {
		return err
	}

	return execCtx.ProcessInstruction(instruction.Data, instrAccts, programIndices)
}

package sealevel

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/cu"
	"go.firedancer.io/harness/pkg/features"
	"go.firedancer.io/harness/pkg/sysvar"
)

// Environment is the chain state an instruction executes against.
type Environment struct {
	Blockhash            [32]byte
	LamportsPerSignature uint64
	Features             *features.Features
	Sysvars              *sysvar.Sysvars
	Programs             *ProgramCache

	// Log, if set, also receives every program log line.
	Log Logger
}

type ExecuteArgs struct {
	ProgramId           solana.PublicKey
	Data                []byte
	InstructionAccounts []InstructionAccount
	ProgramIndex        uint64
}

type Timings struct {
	Execute time.Duration
}

type ExecuteOutput struct {
	Err          error
	ComputeUnits uint64
	Timings      Timings
	WorkingSet   []accounts.KeyedAccount
	ReturnData   TxReturnData
	Logs         []string
}

// Engine executes one top-level instruction inside txCtx, charging meter.
type Engine interface {
	Execute(txCtx *TransactionCtx, args ExecuteArgs, env *Environment, meter *cu.ComputeMeter) ExecuteOutput
}

// Runtime runs builtins natively and hands bytecode programs to VM. A nil VM
// makes every bytecode invocation fail with InstrErrUnsupportedProgramId.
type Runtime struct {
	VM VM
}

func (rt *Runtime) Execute(txCtx *TransactionCtx, args ExecuteArgs, env *Environment, meter *cu.ComputeMeter) ExecuteOutput {
	recorder := new(LogRecorder)
	var log Logger = recorder
	if env.Log != nil {
		log = multiLogger{recorder, env.Log}
	}

	execCtx := &ExecutionCtx{
		Log:                  log,
		TransactionContext:   txCtx,
		ComputeMeter:         *meter,
		Features:             env.Features,
		Sysvars:              env.Sysvars,
		Programs:             env.Programs,
		VM:                   rt.VM,
		Blockhash:            env.Blockhash,
		LamportsPerSignature: env.LamportsPerSignature,
	}

	start := time.Now()
	remainingBefore := execCtx.ComputeMeter.Remaining()
	err := execCtx.ProcessInstruction(args.Data, args.InstructionAccounts, []uint64{args.ProgramIndex})
	elapsed := time.Since(start)

	*meter = execCtx.ComputeMeter
	consumed := remainingBefore - meter.Remaining()
	if errors.Is(err, cu.ErrComputeExceeded) {
		err = InstrErrComputationalBudgetExceeded
	}
	logConsumed(log, args.ProgramId, consumed, remainingBefore)

	returnData := txCtx.ReturnData
	returnData.Data = append([]byte(nil), returnData.Data...)

	return ExecuteOutput{
		Err:          err,
		ComputeUnits: consumed,
		Timings:      Timings{Execute: elapsed},
		WorkingSet:   txCtx.Accounts.KeyedAccounts(),
		ReturnData:   returnData,
		Logs:         recorder.Logs,
	}
}

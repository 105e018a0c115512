package harness

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/compile"
	"go.firedancer.io/harness/pkg/fees"
	"go.firedancer.io/harness/pkg/sealevel"
	"go.firedancer.io/harness/pkg/sysvar"
	"k8s.io/klog/v2"
)

// InstructionError attributes a transaction failure to one of its instructions.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d failed: %s", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// ProcessInstruction executes ix against accts. On failure every account in
// the result keeps its input image. It panics if ix targets a program that
// was never added to the cache.
func (h *Harness) ProcessInstruction(ix sealevel.Instruction, accts []accounts.KeyedAccount) InstructionResult {
	return h.processInstruction(ix, accts, h.sysvars.Snapshot())
}

func (h *Harness) processInstruction(ix sealevel.Instruction, accts []accounts.KeyedAccount, sysvars *sysvar.Sysvars) InstructionResult {
	sysvars = sysvarOverlay(sysvars, accts)
	source := h.source(compile.FromList(accts), sysvars)
	loaderKey := h.loaderKeyFor(ix.ProgramId, source)
	compiled := compile.Accounts(ix, source, compile.ExecutableStub(loaderKey))

	txCtx := sealevel.NewTransactionCtx(compiled.TransactionAccounts, h.budget)
	txCtx.InstructionDatas = [][]byte{ix.Data}
	meter := h.budget.Meter()

	out := h.engine.Execute(txCtx, sealevel.ExecuteArgs{
		ProgramId:           ix.ProgramId,
		Data:                ix.Data,
		InstructionAccounts: compiled.InstructionAccounts,
		ProgramIndex:        compiled.ProgramIdIndex,
	}, h.environment(sysvars), &meter)
	h.metrics.observe(out)
	if out.Err != nil {
		klog.V(2).Infof("instruction to %s failed: %s", ix.ProgramId, out.Err)
	}

	return InstructionResult{
		ComputeUnitsConsumed: out.ComputeUnits,
		ExecutionTime:        out.Timings.Execute,
		ProgramResult:        out.Err,
		ReturnData:           out.ReturnData.Data,
		ResultingAccounts:    resultingAccounts(accts, out.WorkingSet, out.Err == nil),
		Logs:                 out.Logs,
		RawResult:            &out,
	}
}

// resultingAccounts maps every input address to its post-execution image,
// or to its input image when the execution failed.
func resultingAccounts(original, workingSet []accounts.KeyedAccount, succeeded bool) []accounts.KeyedAccount {
	post := make(map[solana.PublicKey]accounts.Account, len(workingSet))
	if succeeded {
		for _, ka := range workingSet {
			post[ka.Key] = ka.Account
		}
	}

	return lo.Map(original, func(ka accounts.KeyedAccount, _ int) accounts.KeyedAccount {
		if acct, ok := post[ka.Key]; ok {
			return accounts.KeyedAccount{Key: ka.Key, Account: acct.Clone()}
		}
		return accounts.KeyedAccount{Key: ka.Key, Account: ka.Account.Clone()}
	})
}

// ProcessInstructionChain runs ixs in order, feeding each instruction the
// accounts the previous one produced. It stops at the first failure, so the
// resulting accounts are those left by the successful prefix.
func (h *Harness) ProcessInstructionChain(ixs []sealevel.Instruction, accts []accounts.KeyedAccount) InstructionResult {
	result, _ := h.processChain(ixs, accts, h.sysvars.Snapshot(), nil)
	return result
}

// processChain also reports how many instructions ran. step, if set, sees
// the running aggregate after every instruction.
func (h *Harness) processChain(ixs []sealevel.Instruction, accts []accounts.KeyedAccount, sysvars *sysvar.Sysvars, step func(i int, r *InstructionResult)) (InstructionResult, int) {
	result := InstructionResult{
		ResultingAccounts: resultingAccounts(accts, nil, false),
	}

	executed := 0
	for i, ix := range ixs {
		next := h.processInstruction(ix, result.ResultingAccounts, sysvars)
		result.absorb(next)
		executed++
		if step != nil {
			step(i, &result)
		}
		if next.ProgramResult != nil {
			klog.V(2).Infof("chain stopped at instruction %d of %d", i+1, len(ixs))
			break
		}
	}
	return result, executed
}

// ProcessTransaction runs ixs inside one transaction context, so they share
// a single working set and compute meter. Any failure reverts every account.
func (h *Harness) ProcessTransaction(ixs []sealevel.Instruction, accts []accounts.KeyedAccount) TransactionResult {
	return h.processTransaction(ixs, accts, h.sysvars.Snapshot())
}

func (h *Harness) processTransaction(ixs []sealevel.Instruction, accts []accounts.KeyedAccount, sysvars *sysvar.Sysvars) TransactionResult {
	sysvars = sysvarOverlay(sysvars, accts)
	source := h.source(compile.FromList(accts), sysvars)
	stubs := make(map[solana.PublicKey]compile.StubPolicy, len(ixs))
	for _, ix := range ixs {
		stubs[ix.ProgramId] = compile.ExecutableStub(h.loaderKeyFor(ix.ProgramId, source))
	}
	compiled := compile.Transaction(ixs, source, stubs)

	txCtx := sealevel.NewTransactionCtx(compiled.TransactionAccounts, h.budget)
	txCtx.InstructionDatas = lo.Map(ixs, func(ix sealevel.Instruction, _ int) []byte { return ix.Data })
	meter := h.budget.Meter()
	env := h.environment(sysvars)

	numSigners := lo.CountBy(compiled.KeyMap.Keys(), compiled.KeyMap.IsSigner)
	result := TransactionResult{
		Fee: fees.SignatureFee(ixs, uint64(numSigners), env.LamportsPerSignature),
	}

	for i, cix := range compiled.Instructions {
		out := h.engine.Execute(txCtx, sealevel.ExecuteArgs{
			ProgramId:           cix.ProgramId,
			Data:                cix.Data,
			InstructionAccounts: cix.InstructionAccounts,
			ProgramIndex:        cix.ProgramIdIndex,
		}, env, &meter)
		h.metrics.observe(out)

		result.Instructions = append(result.Instructions, InstructionResult{
			ComputeUnitsConsumed: out.ComputeUnits,
			ExecutionTime:        out.Timings.Execute,
			ProgramResult:        out.Err,
			ReturnData:           out.ReturnData.Data,
			ResultingAccounts:    resultingAccounts(accts, out.WorkingSet, out.Err == nil),
			Logs:                 out.Logs,
			RawResult:            &out,
		})
		result.ComputeUnitsConsumed += out.ComputeUnits
		result.ExecutionTime += out.Timings.Execute

		if out.Err != nil {
			result.ProgramResult = &InstructionError{Index: i, Err: out.Err}
			klog.V(2).Infof("transaction failed: %s", result.ProgramResult)
			break
		}
	}

	post := txCtx.Accounts.KeyedAccounts()
	if result.ProgramResult == nil && h.checkRentState {
		err := fees.VerifyRentStateChanges(compiled.TransactionAccounts, post, compiled.KeyMap.IsWritable, sysvars.Rent())
		if err != nil {
			result.ProgramResult = err
		}
	}

	result.ResultingAccounts = resultingAccounts(accts, post, result.ProgramResult == nil)
	return result
}

// ProcessAndValidateInstruction runs ix and then checks; the error joins
// every failed check.
func (h *Harness) ProcessAndValidateInstruction(ix sealevel.Instruction, accts []accounts.KeyedAccount, checks ...Check) (InstructionResult, error) {
	result := h.ProcessInstruction(ix, accts)
	return result, h.RunChecks(&result, checks...)
}

// ProcessAndValidateInstructionChain runs checks[i] against the chain's
// running result after instruction i.
func (h *Harness) ProcessAndValidateInstructionChain(ixs []sealevel.Instruction, accts []accounts.KeyedAccount, checks [][]Check) (InstructionResult, error) {
	var errs []error
	result, executed := h.processChain(ixs, accts, h.sysvars.Snapshot(), func(i int, r *InstructionResult) {
		if i >= len(checks) {
			return
		}
		if err := h.RunChecks(r, checks[i]...); err != nil {
			errs = append(errs, fmt.Errorf("instruction %d: %w", i, err))
		}
	})
	for i := executed; i < len(checks) && i < len(ixs); i++ {
		if len(checks[i]) > 0 {
			errs = append(errs, fmt.Errorf("instruction %d: not executed", i))
		}
	}
	return result, errors.Join(errs...)
}

// ProcessAndValidateTransaction runs ixs as one transaction and checks the
// combined result.
func (h *Harness) ProcessAndValidateTransaction(ixs []sealevel.Instruction, accts []accounts.KeyedAccount, checks ...Check) (TransactionResult, error) {
	result := h.ProcessTransaction(ixs, accts)
	flat := result.instructionResult()
	return result, h.RunChecks(&flat, checks...)
}

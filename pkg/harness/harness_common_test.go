package harness

import (
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/sealevel"
)

func systemAccount(lamports uint64) accounts.Account {
	return accounts.Account{Lamports: lamports, Owner: sealevel.SystemProgramAddr}
}

func keyed(key solana.PublicKey, acct accounts.Account) accounts.KeyedAccount {
	return accounts.KeyedAccount{Key: key, Account: acct}
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func transfer(from, to solana.PublicKey, lamports uint64) sealevel.Instruction {
	return sealevel.NewTransferInstruction(from, to, lamports)
}

// recordingVM stands in for a bytecode interpreter. It records the
// executable it was handed and returns its first bytes as return data.
type recordingVM struct {
	mu   sync.Mutex
	elfs [][]byte
	err  error
}

func (vm *recordingVM) Execute(execCtx *sealevel.ExecutionCtx, program *sealevel.ProgramEntry) error {
	vm.mu.Lock()
	vm.elfs = append(vm.elfs, program.Elf)
	vm.mu.Unlock()

	if err := execCtx.ComputeMeter.Consume(100); err != nil {
		return err
	}
	if vm.err != nil {
		return vm.err
	}
	return execCtx.TransactionContext.SetReturnData(program.ProgramId, program.Elf[:4])
}

func (vm *recordingVM) executed() [][]byte {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return append([][]byte(nil), vm.elfs...)
}

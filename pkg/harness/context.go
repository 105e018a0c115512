package harness

import (
	"bytes"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/compile"
	"go.firedancer.io/harness/pkg/sealevel"
	"go.firedancer.io/harness/pkg/sysvar"
	"k8s.io/klog/v2"
)

// Context runs instructions against an account store and writes their
// effects back. A failed instruction or transaction leaves the store alone;
// a chain that fails part way persists the state its successful prefix left.
// Simulated calls never write.
//
// Each call loads its accounts under a read lock and writes its results
// under a separate write lock, so writes are never seen half applied but
// calls are not serialized. Two concurrent calls touching the same account
// both start from the same image and the later write wins; callers that
// need every debit to land must not overlap such calls.
type Context struct {
	h     *Harness
	store accounts.Store
	mu    *sync.RWMutex
}

// WithContext binds store to h, seeding it with every cached program
// account it does not already hold.
func (h *Harness) WithContext(store accounts.Store) *Context {
	c := &Context{h: h, store: store, mu: new(sync.RWMutex)}
	c.seed(h.programs.AllKnownAccounts())
	return c
}

func (c *Context) seed(accts []accounts.KeyedAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ka := range accts {
		if _, ok := c.store.Get(ka.Key); ok {
			continue
		}
		acct := ka.Account
		c.store.Put(ka.Key, &acct)
	}
}

// Clone returns a context sharing the harness, the store and its lock.
func (c *Context) Clone() *Context {
	clone := *c
	return &clone
}

func (c *Context) Harness() *Harness {
	return c.h
}

func (c *Context) Store() accounts.Store {
	return c.store
}

// AddProgram caches a program and stores its accounts, replacing any held.
func (c *Context) AddProgram(programId solana.PublicKey, loaderKey solana.PublicKey, elf []byte) {
	c.h.AddProgram(programId, loaderKey, elf)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ka := range c.h.programs.ProgramAccounts(programId) {
		acct := ka.Account
		c.store.Put(ka.Key, &acct)
	}
}

// Account reads key from the store.
func (c *Context) Account(key solana.PublicKey) (accounts.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	acct, ok := c.store.Get(key)
	if !ok {
		return accounts.Account{}, false
	}
	return *acct, true
}

type executionMode int

const (
	modeInstruction executionMode = iota
	modeChain
	modeTransaction
)

func (c *Context) ProcessInstruction(ix sealevel.Instruction) ContextResult {
	return c.execute([]sealevel.Instruction{ix}, modeInstruction, false)
}

func (c *Context) ProcessInstructionChain(ixs []sealevel.Instruction) ContextResult {
	return c.execute(ixs, modeChain, false)
}

func (c *Context) ProcessTransaction(ixs []sealevel.Instruction) ContextResult {
	return c.execute(ixs, modeTransaction, false)
}

func (c *Context) SimulateInstruction(ix sealevel.Instruction) ContextResult {
	return c.execute([]sealevel.Instruction{ix}, modeInstruction, true)
}

func (c *Context) SimulateInstructionChain(ixs []sealevel.Instruction) ContextResult {
	return c.execute(ixs, modeChain, true)
}

func (c *Context) SimulateTransaction(ixs []sealevel.Instruction) ContextResult {
	return c.execute(ixs, modeTransaction, true)
}

func (c *Context) execute(ixs []sealevel.Instruction, mode executionMode, simulate bool) ContextResult {
	sysvars := c.h.sysvars.Snapshot()
	accts := c.load(ixs, sysvars)

	var result InstructionResult
	var persist bool
	switch mode {
	case modeInstruction:
		result = c.h.processInstruction(ixs[0], accts, sysvars)
		persist = result.Succeeded()
	case modeChain:
		var executed int
		result, executed = c.h.processChain(ixs, accts, sysvars, nil)
		persist = result.Succeeded() || executed > 1
	case modeTransaction:
		txResult := c.h.processTransaction(ixs, accts, sysvars)
		result = txResult.instructionResult()
		persist = txResult.Succeeded()
	}

	if !simulate && persist {
		c.absorb(result.ResultingAccounts, sysvars)
	}
	return contextResult(&result)
}

// load reads every address ixs reference. Sysvars come from the snapshot.
// Programs missing from the store are left out so the compiler stubs them.
func (c *Context) load(ixs []sealevel.Instruction, sysvars *sysvar.Sysvars) []accounts.KeyedAccount {
	programIds := make(map[solana.PublicKey]struct{}, len(ixs))
	for _, ix := range ixs {
		programIds[ix.ProgramId] = struct{}{}
	}

	keys := compile.KeyMapFromInstructions(ixs...).Keys()
	accts := make([]accounts.KeyedAccount, 0, len(keys))

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, key := range keys {
		if kind, ok := sysvar.KindForAddress(key); ok {
			accts = append(accts, accounts.KeyedAccount{Key: key, Account: sysvars.Account(kind)})
			continue
		}
		if acct, ok := c.store.Get(key); ok {
			accts = append(accts, accounts.KeyedAccount{Key: key, Account: *acct})
			continue
		}
		if _, ok := programIds[key]; ok {
			continue
		}
		if _, ok := c.h.programs.LoaderKeyFor(key); ok {
			continue
		}
		accts = append(accts, accounts.KeyedAccount{Key: key, Account: c.store.DefaultFor(key)})
	}
	return accts
}

// absorb writes resulting accounts to the store. Changed sysvar accounts
// update the shared snapshot, and upgradeable programs whose programdata
// now holds different bytecode are re-registered with the cache.
func (c *Context) absorb(resulting []accounts.KeyedAccount, before *sysvar.Sysvars) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ka := range resulting {
		if kind, ok := sysvar.KindForAddress(ka.Key); ok {
			prev := before.Account(kind)
			if !bytes.Equal(prev.Data, ka.Account.Data) {
				if _, err := c.h.sysvars.Absorb(ka.Key, ka.Account.Data); err != nil {
					klog.Errorf("failed to absorb sysvar %s: %s", kind, err)
				}
			}
		}
		acct := ka.Account.Clone()
		c.store.Put(ka.Key, &acct)
		c.h.metrics.absorbed.Inc()
	}

	for _, ka := range resulting {
		if ka.Account.Executable && ka.Account.Owner == sealevel.BpfLoaderUpgradeableAddr {
			c.refreshProgram(ka.Key, &ka.Account)
		}
	}
}

func (c *Context) refreshProgram(programId solana.PublicKey, programAcct *accounts.Account) {
	programDataAddr, ok := sealevel.ProgramDataAddressOf(programAcct.Data)
	if !ok {
		return
	}
	programData, ok := c.store.Get(programDataAddr)
	if !ok {
		return
	}
	elf, ok := sealevel.ElfFromProgramData(programData.Data)
	if !ok {
		return
	}

	if entry, ok := c.h.programs.Load(programId); ok && entry.LoaderKey == sealevel.BpfLoaderUpgradeableAddr && bytes.Equal(entry.Elf, elf) {
		return
	}
	klog.V(2).Infof("re-registering upgradeable program %s from %s", programId, programDataAddr)
	c.h.AddProgram(programId, sealevel.BpfLoaderUpgradeableAddr, elf)
	c.h.metrics.programsUpdated.Inc()
}

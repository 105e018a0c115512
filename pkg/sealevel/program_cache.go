package sealevel

import (
	"bytes"
	"fmt"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/sysvar"
	"k8s.io/klog/v2"
)

type BuiltinFunc func(execCtx *ExecutionCtx) error

type Builtin struct {
	ProgramId  solana.PublicKey
	Name       string
	Entrypoint BuiltinFunc
}

// ProgramEntry is a cached program. Builtins carry an entrypoint, bytecode
// programs carry their executable bytes.
type ProgramEntry struct {
	ProgramId      solana.PublicKey
	LoaderKey      solana.PublicKey
	Name           string
	Builtin        BuiltinFunc
	Elf            []byte
	DeploymentSlot uint64
}

// ProgramCache maps program ids to their loader and executable. It is safe
// for concurrent use and is meant to be shared by pointer.
type ProgramCache struct {
	mu         sync.RWMutex
	entries    map[solana.PublicKey]*ProgramEntry
	loaderKeys map[solana.PublicKey]solana.PublicKey
	slot       uint64
	rent       sysvar.Rent
}

// DefaultBuiltins are registered by NewProgramCache.
func DefaultBuiltins() []Builtin {
	return []Builtin{
		{ProgramId: SystemProgramAddr, Name: "system_program", Entrypoint: SystemProgramExecute},
		{ProgramId: BpfLoaderDeprecatedAddr, Name: "solana_bpf_loader_deprecated_program", Entrypoint: loaderEntrypoint(BpfLoaderDeprecatedAddr)},
		{ProgramId: BpfLoaderAddr, Name: "solana_bpf_loader_program", Entrypoint: loaderEntrypoint(BpfLoaderAddr)},
		{ProgramId: BpfLoaderUpgradeableAddr, Name: "solana_bpf_loader_upgradeable_program", Entrypoint: loaderEntrypoint(BpfLoaderUpgradeableAddr)},
		{ProgramId: LoaderV4Addr, Name: "loader_v4", Entrypoint: loaderEntrypoint(LoaderV4Addr)},
	}
}

func NewProgramCache() *ProgramCache {
	cache := &ProgramCache{
		entries:    make(map[solana.PublicKey]*ProgramEntry),
		loaderKeys: make(map[solana.PublicKey]solana.PublicKey),
		rent:       sysvar.DefaultRent(),
	}
	for _, builtin := range DefaultBuiltins() {
		cache.AddBuiltin(builtin)
	}
	return cache
}

// SetSlot sets the deployment slot recorded for programs added afterwards.
func (c *ProgramCache) SetSlot(slot uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slot = slot
}

// SetRent sets the rent used to fund synthesized program accounts.
func (c *ProgramCache) SetRent(rent sysvar.Rent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rent = rent
}

func (c *ProgramCache) AddBuiltin(builtin Builtin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[builtin.ProgramId] = &ProgramEntry{
		ProgramId: builtin.ProgramId,
		LoaderKey: NativeLoaderAddr,
		Name:      builtin.Name,
		Builtin:   builtin.Entrypoint,
	}
	c.loaderKeys[builtin.ProgramId] = NativeLoaderAddr
}

// AddProgram caches elf as programId's executable under loaderKey, deployed
// at the slot last passed to SetSlot. Adding an id that is already present
// replaces it.
func (c *ProgramCache) AddProgram(programId solana.PublicKey, loaderKey solana.PublicKey, elf []byte) {
	checkLoader(programId, loaderKey)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putProgram(programId, loaderKey, elf, c.slot)
}

// AddProgramAt is AddProgram with an explicit deployment slot.
func (c *ProgramCache) AddProgramAt(programId solana.PublicKey, loaderKey solana.PublicKey, elf []byte, slot uint64) {
	checkLoader(programId, loaderKey)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putProgram(programId, loaderKey, elf, slot)
}

func checkLoader(programId solana.PublicKey, loaderKey solana.PublicKey) {
	if _, ok := LoaderKindForKey(loaderKey); !ok || loaderKey == NativeLoaderAddr {
		panic(fmt.Sprintf("cannot add program %s under loader %s", programId, loaderKey))
	}
}

func (c *ProgramCache) putProgram(programId solana.PublicKey, loaderKey solana.PublicKey, elf []byte, slot uint64) {
	if prev, ok := c.entries[programId]; ok {
		klog.V(2).Infof("replacing program %s (loader %s, slot %d)", programId, prev.LoaderKey, prev.DeploymentSlot)
	}
	c.entries[programId] = &ProgramEntry{
		ProgramId:      programId,
		LoaderKey:      loaderKey,
		Elf:            slices.Clone(elf),
		DeploymentSlot: slot,
	}
	c.loaderKeys[programId] = loaderKey
}

func (c *ProgramCache) Load(programId solana.PublicKey) (*ProgramEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[programId]
	return entry, ok
}

// MustLoad is Load for programs the caller is required to have registered.
func (c *ProgramCache) MustLoad(programId solana.PublicKey) *ProgramEntry {
	entry, ok := c.Load(programId)
	if !ok {
		panic(fmt.Sprintf("program %s not found in program cache; add it before invoking it", programId))
	}
	return entry
}

func (c *ProgramCache) LoaderKeyFor(programId solana.PublicKey) (solana.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.loaderKeys[programId]
	return key, ok
}

func (c *ProgramCache) ProgramIds() []solana.PublicKey {
	c.mu.RLock()
	ids := make([]solana.PublicKey, 0, len(c.loaderKeys))
	for id := range c.loaderKeys {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	slices.SortFunc(ids, func(a, b solana.PublicKey) int { return bytes.Compare(a[:], b[:]) })
	return ids
}

// ProgramAccount synthesizes the account a cluster would hold at programId.
func (c *ProgramCache) ProgramAccount(programId solana.PublicKey) (accounts.Account, bool) {
	accts := c.ProgramAccounts(programId)
	if len(accts) == 0 {
		return accounts.Account{}, false
	}
	return accts[0].Account, true
}

// ProgramAccounts returns the program account followed, for the upgradeable
// loader, by its programdata account.
func (c *ProgramCache) ProgramAccounts(programId solana.PublicKey) []accounts.KeyedAccount {
	c.mu.RLock()
	entry, ok := c.entries[programId]
	rent := c.rent
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	minBalance := func(dataLen int) uint64 {
		return max(1, rent.MinimumBalance(uint64(dataLen)))
	}

	switch entry.LoaderKey {
	case NativeLoaderAddr:
		return []accounts.KeyedAccount{{Key: programId, Account: accounts.Account{
			Lamports:   1,
			Data:       []byte(entry.Name),
			Owner:      NativeLoaderAddr,
			Executable: true,
		}}}

	case BpfLoaderDeprecatedAddr, BpfLoaderAddr:
		return []accounts.KeyedAccount{{Key: programId, Account: accounts.Account{
			Lamports:   minBalance(len(entry.Elf)),
			Data:       slices.Clone(entry.Elf),
			Owner:      entry.LoaderKey,
			Executable: true,
		}}}

	case BpfLoaderUpgradeableAddr:
		programDataAddr := ProgramDataAddress(programId)
		programData := newUpgradeableProgramAccountData(programDataAddr)
		programDataData := newUpgradeableProgramDataAccountData(entry.DeploymentSlot, nil, entry.Elf)
		return []accounts.KeyedAccount{
			{Key: programId, Account: accounts.Account{
				Lamports:   minBalance(len(programData)),
				Data:       programData,
				Owner:      BpfLoaderUpgradeableAddr,
				Executable: true,
			}},
			{Key: programDataAddr, Account: accounts.Account{
				Lamports: minBalance(len(programDataData)),
				Data:     programDataData,
				Owner:    BpfLoaderUpgradeableAddr,
			}},
		}

	case LoaderV4Addr:
		header := (&LoaderV4State{Slot: entry.DeploymentSlot, Status: LoaderV4StatusDeployed}).Marshal()
		data := append(header, entry.Elf...)
		return []accounts.KeyedAccount{{Key: programId, Account: accounts.Account{
			Lamports:   minBalance(len(data)),
			Data:       data,
			Owner:      LoaderV4Addr,
			Executable: true,
		}}}
	}

	panic(fmt.Sprintf("program %s has unknown loader %s", programId, entry.LoaderKey))
}

// AllKnownAccounts returns stub accounts for every cached program, sorted by
// address.
func (c *ProgramCache) AllKnownAccounts() []accounts.KeyedAccount {
	var out []accounts.KeyedAccount
	for _, id := range c.ProgramIds() {
		out = append(out, c.ProgramAccounts(id)...)
	}
	slices.SortFunc(out, func(a, b accounts.KeyedAccount) int { return bytes.Compare(a.Key[:], b.Key[:]) })
	return out
}

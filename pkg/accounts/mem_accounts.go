package accounts

import (
	"bytes"
	"slices"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// MemAccounts is the in-memory reference Store.
type MemAccounts struct {
	mu  sync.RWMutex
	Map map[solana.PublicKey]*Account
}

func NewMemAccounts() *MemAccounts {
	return &MemAccounts{
		Map: make(map[solana.PublicKey]*Account),
	}
}

func NewMemAccountsFrom(accts []KeyedAccount) *MemAccounts {
	m := NewMemAccounts()
	for i := range accts {
		m.Put(accts[i].Key, &accts[i].Account)
	}
	return m
}

func (m *MemAccounts) Get(pubkey solana.PublicKey) (*Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acct, ok := m.Map[pubkey]
	if !ok {
		return nil, false
	}
	c := acct.Clone()
	return &c, true
}

func (m *MemAccounts) DefaultFor(pubkey solana.PublicKey) Account {
	return Account{}
}

func (m *MemAccounts) Put(pubkey solana.PublicKey, acct *Account) {
	c := acct.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Map[pubkey] = &c
}

func (m *MemAccounts) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Map)
}

// Keys returns every stored address in ascending byte order.
func (m *MemAccounts) Keys() []solana.PublicKey {
	m.mu.RLock()
	keys := make([]solana.PublicKey, 0, len(m.Map))
	for k := range m.Map {
		keys = append(keys, k)
	}
	m.mu.RUnlock()

	slices.SortFunc(keys, func(a, b solana.PublicKey) int {
		return bytes.Compare(a[:], b[:])
	})
	return keys
}

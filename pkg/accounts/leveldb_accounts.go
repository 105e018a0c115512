package accounts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"k8s.io/klog/v2"
)

// LevelDbAccounts is a Store persisted in a leveldb database. Storage errors
// cannot be surfaced through the Store interface, so the first one is kept
// and reported by Err.
type LevelDbAccounts struct {
	db *leveldb.DB

	mu  sync.Mutex
	err error
}

func OpenLevelDbAccounts(path string) (*LevelDbAccounts, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts db at %s: %w", path, err)
	}
	return &LevelDbAccounts{db: db}, nil
}

// NewMemLevelDbAccounts opens a leveldb instance backed by memory storage.
func NewMemLevelDbAccounts() (*LevelDbAccounts, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDbAccounts{db: db}, nil
}

func (l *LevelDbAccounts) Get(pubkey solana.PublicKey) (*Account, bool) {
	acctBytes, err := l.db.Get(pubkey[:], nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false
	} else if err != nil {
		l.setErr(fmt.Errorf("error whilst retrieving account %s: %w", pubkey, err))
		return nil, false
	}

	acct, err := Unmarshal(acctBytes)
	if err != nil {
		l.setErr(fmt.Errorf("failed to deserialize account %s: %w", pubkey, err))
		return nil, false
	}
	return acct, true
}

func (l *LevelDbAccounts) DefaultFor(pubkey solana.PublicKey) Account {
	return Account{}
}

func (l *LevelDbAccounts) Put(pubkey solana.PublicKey, acct *Account) {
	acctBytes, err := acct.Marshal()
	if err != nil {
		l.setErr(fmt.Errorf("failed to serialize account %s: %w", pubkey, err))
		return
	}

	if err = l.db.Put(pubkey[:], acctBytes, nil); err != nil {
		l.setErr(fmt.Errorf("error setting account for %s: %w", pubkey, err))
	}
}

// Keys lists every stored address in key order.
func (l *LevelDbAccounts) Keys() ([]solana.PublicKey, error) {
	var keys []solana.PublicKey
	iter := l.db.NewIterator(nil, nil)
	for iter.Next() {
		keys = append(keys, solana.PublicKeyFromBytes(iter.Key()))
	}
	iter.Release()
	return keys, iter.Error()
}

// Err returns the first storage error seen by Get or Put.
func (l *LevelDbAccounts) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *LevelDbAccounts) Close() error {
	return l.db.Close()
}

func (l *LevelDbAccounts) setErr(err error) {
	klog.Errorf("accounts db: %s", err)
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
}

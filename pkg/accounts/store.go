package accounts

import "github.com/gagliardetto/solana-go"

// Store is a keyed table of accounts. Implementations must be safe for
// concurrent use: reads may proceed in parallel, writes are exclusive, and a
// Put is never observed half-applied.
type Store interface {
	// Get returns a copy of the stored account, if any.
	Get(pubkey solana.PublicKey) (*Account, bool)
	// DefaultFor returns the image used for an address the store does not hold.
	DefaultFor(pubkey solana.PublicKey) Account
	Put(pubkey solana.PublicKey, acct *Account)
}

// GetOrDefault fetches pubkey from the store, falling back to its default policy.
func GetOrDefault(store Store, pubkey solana.PublicKey) Account {
	if acct, ok := store.Get(pubkey); ok {
		return *acct
	}
	return store.DefaultFor(pubkey)
}

type defaultingStore struct {
	Store
	defaultFor func(solana.PublicKey) Account
}

func (d defaultingStore) DefaultFor(pubkey solana.PublicKey) Account {
	return d.defaultFor(pubkey)
}

// WithDefault wraps a store, replacing its DefaultFor policy.
func WithDefault(store Store, defaultFor func(solana.PublicKey) Account) Store {
	return defaultingStore{Store: store, defaultFor: defaultFor}
}

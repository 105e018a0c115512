// Package fetcher loads account images from JSON files on disk or from a
// cluster over JSON-RPC.
package fetcher

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"go.firedancer.io/harness/pkg/accounts"
	"k8s.io/klog/v2"
)

var ErrMalformedRecord = errors.New("malformed account record")

// record is the layout written by `solana account --output json`.
type record struct {
	Pubkey  string    `json:"pubkey"`
	Account uiAccount `json:"account"`
}

type uiAccount struct {
	Lamports   uint64   `json:"lamports"`
	Data       []string `json:"data"`
	Owner      string   `json:"owner"`
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
	Space      uint64   `json:"space"`
}

func (r *record) keyedAccount() (accounts.KeyedAccount, error) {
	key, err := solana.PublicKeyFromBase58(r.Pubkey)
	if err != nil {
		return accounts.KeyedAccount{}, fmt.Errorf("%w: pubkey %q: %w", ErrMalformedRecord, r.Pubkey, err)
	}
	owner, err := solana.PublicKeyFromBase58(r.Account.Owner)
	if err != nil {
		return accounts.KeyedAccount{}, fmt.Errorf("%w: owner of %s %q: %w", ErrMalformedRecord, key, r.Account.Owner, err)
	}

	// Only ["<data>", "base64"] carries bytes; any other encoding loads as empty.
	var data []byte
	if len(r.Account.Data) == 2 && r.Account.Data[1] == "base64" {
		data, err = base64.StdEncoding.DecodeString(r.Account.Data[0])
		if err != nil {
			return accounts.KeyedAccount{}, fmt.Errorf("%w: data of %s: %w", ErrMalformedRecord, key, err)
		}
	}

	return accounts.KeyedAccount{Key: key, Account: accounts.Account{
		Lamports:   r.Account.Lamports,
		Data:       data,
		Owner:      owner,
		Executable: r.Account.Executable,
		RentEpoch:  r.Account.RentEpoch,
	}}, nil
}

func recordFrom(ka accounts.KeyedAccount) record {
	return record{
		Pubkey: ka.Key.String(),
		Account: uiAccount{
			Lamports:   ka.Account.Lamports,
			Data:       []string{base64.StdEncoding.EncodeToString(ka.Account.Data), "base64"},
			Owner:      ka.Account.Owner.String(),
			Executable: ka.Account.Executable,
			RentEpoch:  ka.Account.RentEpoch,
			Space:      uint64(len(ka.Account.Data)),
		},
	}
}

func decodeRecords(records []record) ([]accounts.KeyedAccount, error) {
	out := make([]accounts.KeyedAccount, 0, len(records))
	for i := range records {
		ka, err := records[i].keyedAccount()
		if err != nil {
			return nil, err
		}
		out = append(out, ka)
	}
	return out, nil
}

// parse accepts either a JSON array of records or a single record.
func parse(data []byte) ([]accounts.KeyedAccount, error) {
	var many []record
	if err := json.Unmarshal(data, &many); err == nil {
		return decodeRecords(many)
	}
	var one record
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return decodeRecords([]record{one})
}

// FromFile loads the accounts in a JSON file holding one record or an
// array of records.
func FromFile(path string) ([]accounts.KeyedAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts from %s: %w", path, err)
	}
	accts, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return accts, nil
}

// FromDir loads every .json file under dir, recursively, in lexical order.
func FromDir(dir string) ([]accounts.KeyedAccount, error) {
	var out []accounts.KeyedAccount
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		accts, err := FromFile(path)
		if err != nil {
			return err
		}
		klog.V(3).Infof("loaded %d accounts from %s", len(accts), path)
		out = append(out, accts...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FromPath dispatches to FromDir or FromFile.
func FromPath(path string) ([]accounts.KeyedAccount, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return FromDir(path)
	}
	return FromFile(path)
}

// WriteFile stores accts as a JSON array FromFile reads back.
func WriteFile(path string, accts []accounts.KeyedAccount) error {
	records := make([]record, 0, len(accts))
	for _, ka := range accts {
		records = append(records, recordFrom(ka))
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

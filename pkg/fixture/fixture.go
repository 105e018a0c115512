// Package fixture stores single-instruction test cases as YAML and replays
// them against the harness.
package fixture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/samber/lo"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/cu"
	"go.firedancer.io/harness/pkg/harness"
	"go.firedancer.io/harness/pkg/sealevel"
	"gopkg.in/yaml.v3"
)

var ErrMalformedFixture = errors.New("malformed fixture")

type Fixture struct {
	Name   string `yaml:"name,omitempty"`
	Input  Input  `yaml:"input"`
	Output Output `yaml:"output"`
}

type Input struct {
	Accounts      []Account               `yaml:"accounts"`
	ComputeBudget cu.ComputeBudget        `yaml:"compute_budget,omitempty"`
	Features      []string                `yaml:"features,omitempty"`
	Instruction   Instruction             `yaml:"instruction"`
	Sysvars       harness.SysvarOverrides `yaml:"sysvars,omitempty"`
}

type Output struct {
	// ProgramResult is empty on success, else the error text.
	ProgramResult     string    `yaml:"program_result"`
	ReturnData        string    `yaml:"return_data,omitempty"`
	ComputeUnits      uint64    `yaml:"compute_units"`
	ResultingAccounts []Account `yaml:"resulting_accounts"`
}

// Account is an account image with a base58 address and owner and base64 data.
type Account struct {
	Pubkey     string `yaml:"pubkey"`
	Lamports   uint64 `yaml:"lamports"`
	Data       string `yaml:"data,omitempty"`
	Owner      string `yaml:"owner,omitempty"`
	Executable bool   `yaml:"executable,omitempty"`
	RentEpoch  uint64 `yaml:"rent_epoch,omitempty"`
}

type AccountMeta struct {
	Pubkey     string `yaml:"pubkey"`
	IsSigner   bool   `yaml:"is_signer,omitempty"`
	IsWritable bool   `yaml:"is_writable,omitempty"`
}

type Instruction struct {
	ProgramId string        `yaml:"program_id"`
	Accounts  []AccountMeta `yaml:"accounts"`
	Data      string        `yaml:"data,omitempty"`
}

func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return f, nil
}

func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFixture, err)
	}
	return &f, nil
}

func (f *Fixture) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

func (f *Fixture) Save(path string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Expand turns a mix of fixture files and directories into the list of
// fixture files, walking directories for .yaml and .yml files.
func Expand(paths []string) ([]string, error) {
	var out []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ext := filepath.Ext(p); !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
				out = append(out, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeKey(field, s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s %q: %w", ErrMalformedFixture, field, s, err)
	}
	return key, nil
}

func decodeData(field, s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFixture, field, err)
	}
	return data, nil
}

func (a Account) KeyedAccount() (accounts.KeyedAccount, error) {
	key, err := decodeKey("pubkey", a.Pubkey)
	if err != nil {
		return accounts.KeyedAccount{}, err
	}
	owner := sealevel.SystemProgramAddr
	if a.Owner != "" {
		if owner, err = decodeKey("owner", a.Owner); err != nil {
			return accounts.KeyedAccount{}, err
		}
	}
	data, err := decodeData("data of "+a.Pubkey, a.Data)
	if err != nil {
		return accounts.KeyedAccount{}, err
	}
	return accounts.KeyedAccount{Key: key, Account: accounts.Account{
		Lamports:   a.Lamports,
		Data:       data,
		Owner:      owner,
		Executable: a.Executable,
		RentEpoch:  a.RentEpoch,
	}}, nil
}

func AccountFrom(ka accounts.KeyedAccount) Account {
	return Account{
		Pubkey:     ka.Key.String(),
		Lamports:   ka.Account.Lamports,
		Data:       base64.StdEncoding.EncodeToString(ka.Account.Data),
		Owner:      ka.Account.Owner.String(),
		Executable: ka.Account.Executable,
		RentEpoch:  ka.Account.RentEpoch,
	}
}

func keyedAccounts(accts []Account) ([]accounts.KeyedAccount, error) {
	out := make([]accounts.KeyedAccount, 0, len(accts))
	for _, a := range accts {
		ka, err := a.KeyedAccount()
		if err != nil {
			return nil, err
		}
		out = append(out, ka)
	}
	return out, nil
}

func (in *Input) KeyedAccounts() ([]accounts.KeyedAccount, error) {
	return keyedAccounts(in.Accounts)
}

func (ix Instruction) Instruction() (sealevel.Instruction, error) {
	programId, err := decodeKey("program_id", ix.ProgramId)
	if err != nil {
		return sealevel.Instruction{}, err
	}
	data, err := decodeData("instruction data", ix.Data)
	if err != nil {
		return sealevel.Instruction{}, err
	}
	metas := make([]sealevel.AccountMeta, 0, len(ix.Accounts))
	for _, m := range ix.Accounts {
		key, err := decodeKey("instruction account", m.Pubkey)
		if err != nil {
			return sealevel.Instruction{}, err
		}
		metas = append(metas, sealevel.AccountMeta{Pubkey: key, IsSigner: m.IsSigner, IsWritable: m.IsWritable})
	}
	return sealevel.Instruction{ProgramId: programId, Accounts: metas, Data: data}, nil
}

func InstructionFrom(ix sealevel.Instruction) Instruction {
	return Instruction{
		ProgramId: ix.ProgramId.String(),
		Accounts: lo.Map(ix.Accounts, func(m sealevel.AccountMeta, _ int) AccountMeta {
			return AccountMeta{Pubkey: m.Pubkey.String(), IsSigner: m.IsSigner, IsWritable: m.IsWritable}
		}),
		Data: base64.StdEncoding.EncodeToString(ix.Data),
	}
}

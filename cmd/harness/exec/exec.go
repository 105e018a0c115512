package exec

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/fetcher"
	"go.firedancer.io/harness/pkg/fixture"
	"go.firedancer.io/harness/pkg/harness"
	"go.firedancer.io/harness/pkg/sealevel"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

var Cmd = cobra.Command{
	Use:   "exec",
	Short: "Execute one instruction against accounts loaded from disk",
	Run:   run,
}

var (
	accountPaths []string
	metaFlags    []string
	programId    string
	dataHex      string
	configPath   string
	storePath    string
	capturePath  string
)

func init() {
	Cmd.Flags().StringArrayVarP(&accountPaths, "accounts", "a", nil, "Account JSON file or directory (repeatable)")
	Cmd.Flags().StringArrayVarP(&metaFlags, "account", "m", nil, "Instruction account as PUBKEY[:s][:w] (repeatable, in order)")
	Cmd.Flags().StringVarP(&programId, "program-id", "p", "", "Program to invoke")
	Cmd.Flags().StringVarP(&dataHex, "data", "d", "", "Instruction data (hex)")
	Cmd.Flags().StringVarP(&configPath, "config", "c", "", "Harness config file (YAML)")
	Cmd.Flags().StringVar(&storePath, "store", "", "Persist accounts in a leveldb store at this path across runs")
	Cmd.Flags().StringVar(&capturePath, "capture", "", "Write the execution out as a fixture")
	_ = Cmd.MarkFlagRequired("program-id")
}

// parseMeta reads PUBKEY followed by optional :s (signer) and :w (writable) suffixes.
func parseMeta(s string) (sealevel.AccountMeta, error) {
	parts := strings.Split(s, ":")
	key, err := solana.PublicKeyFromBase58(parts[0])
	if err != nil {
		return sealevel.AccountMeta{}, fmt.Errorf("invalid account %q: %w", s, err)
	}
	meta := sealevel.AccountMeta{Pubkey: key}
	for _, flag := range parts[1:] {
		for _, c := range flag {
			switch c {
			case 's':
				meta.IsSigner = true
			case 'w':
				meta.IsWritable = true
			default:
				return sealevel.AccountMeta{}, fmt.Errorf("invalid account flag %q in %q", c, s)
			}
		}
	}
	return meta, nil
}

func instruction() (sealevel.Instruction, error) {
	id, err := solana.PublicKeyFromBase58(programId)
	if err != nil {
		return sealevel.Instruction{}, fmt.Errorf("invalid program id: %w", err)
	}
	data, err := hex.DecodeString(strings.TrimPrefix(dataHex, "0x"))
	if err != nil {
		return sealevel.Instruction{}, fmt.Errorf("invalid instruction data: %w", err)
	}
	ix := sealevel.Instruction{ProgramId: id, Data: data}
	for _, s := range metaFlags {
		meta, err := parseMeta(s)
		if err != nil {
			return sealevel.Instruction{}, err
		}
		ix.Accounts = append(ix.Accounts, meta)
	}
	return ix, nil
}

type storeReport struct {
	ProgramResult string            `yaml:"program_result"`
	ReturnData    string            `yaml:"return_data,omitempty"`
	ComputeUnits  uint64            `yaml:"compute_units"`
	Logs          []string          `yaml:"logs,omitempty"`
	Accounts      []fixture.Account `yaml:"accounts"`
}

func run(c *cobra.Command, args []string) {
	ix, err := instruction()
	if err != nil {
		klog.Exitf("%s", err)
	}

	base := harness.Config{}
	var setup []fixture.Setup
	if configPath != "" {
		fc, err := harness.LoadConfigFile(configPath)
		if err != nil {
			klog.Exitf("%s", err)
		}
		if base, err = fc.Config(); err != nil {
			klog.Exitf("invalid config %s: %s", configPath, err)
		}
		setup = append(setup, fc.LoadPrograms)
	}

	var accts []accounts.KeyedAccount
	for _, path := range accountPaths {
		loaded, err := fetcher.FromPath(path)
		if err != nil {
			klog.Exitf("%s", err)
		}
		accts = append(accts, loaded...)
	}
	klog.V(2).Infof("loaded %d accounts", len(accts))

	f := &fixture.Fixture{Input: fixture.Input{
		Accounts:      make([]fixture.Account, 0, len(accts)),
		ComputeBudget: base.ComputeBudget,
		Instruction:   fixture.InstructionFrom(ix),
	}}
	for _, ka := range accts {
		f.Input.Accounts = append(f.Input.Accounts, fixture.AccountFrom(ka))
	}

	if storePath != "" {
		runWithStore(f, ix, accts, base, setup)
		return
	}

	result, err := f.Run(base, setup...)
	if err != nil {
		klog.Exitf("%s", err)
	}
	for _, line := range result.Logs {
		klog.Info(line)
	}
	printYaml(fixture.OutputFrom(result))

	if capturePath != "" {
		if err := fixture.FromResult("", f.Input, result).Save(capturePath); err != nil {
			klog.Exitf("failed to write fixture: %s", err)
		}
		klog.Infof("captured fixture to %s", capturePath)
	}
}

// runWithStore executes through a context so the resulting accounts
// outlive the process.
func runWithStore(f *fixture.Fixture, ix sealevel.Instruction, accts []accounts.KeyedAccount, base harness.Config, setup []fixture.Setup) {
	store, err := accounts.OpenLevelDbAccounts(storePath)
	if err != nil {
		klog.Exitf("%s", err)
	}
	defer store.Close()

	h, err := f.Harness(base, setup...)
	if err != nil {
		klog.Exitf("%s", err)
	}
	for i := range accts {
		store.Put(accts[i].Key, &accts[i].Account)
	}

	ctx := h.WithContext(store)
	result := ctx.ProcessInstruction(ix)
	if err := store.Err(); err != nil {
		klog.Exitf("accounts store failed: %s", err)
	}

	report := storeReport{
		ComputeUnits: result.ComputeUnitsConsumed,
		Logs:         result.Logs,
	}
	if result.ProgramResult != nil {
		report.ProgramResult = result.ProgramResult.Error()
	}
	if len(result.ReturnData) > 0 {
		report.ReturnData = base64.StdEncoding.EncodeToString(result.ReturnData)
	}
	for _, meta := range ix.Accounts {
		if acct, ok := ctx.Account(meta.Pubkey); ok {
			report.Accounts = append(report.Accounts, fixture.AccountFrom(accounts.KeyedAccount{Key: meta.Pubkey, Account: acct}))
		}
	}
	printYaml(report)
}

func printYaml(v any) {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		klog.Exitf("%s", err)
	}
	_ = enc.Close()
}

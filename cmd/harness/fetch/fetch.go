package fetch

import (
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/cobra"
	"go.firedancer.io/harness/pkg/accounts"
	"go.firedancer.io/harness/pkg/fetcher"
	"go.firedancer.io/harness/pkg/rpcclient"
	"k8s.io/klog/v2"
)

var Cmd = cobra.Command{
	Use:   "fetch <pubkey>...",
	Short: "Download accounts over RPC as JSON records",
	Args:  cobra.MinimumNArgs(1),
	Run:   run,
}

var (
	rpcUrl      string
	outDir      string
	concurrency int
	withDefault bool
)

func init() {
	Cmd.Flags().StringVarP(&rpcUrl, "rpc", "r", rpc.MainNetBeta_RPC, "RPC endpoint")
	Cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to write one <pubkey>.json per account into")
	Cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Concurrent getMultipleAccounts requests")
	Cmd.Flags().BoolVar(&withDefault, "with-default", false, "Write empty system accounts for keys the node does not hold")
}

func run(c *cobra.Command, args []string) {
	keys := make([]solana.PublicKey, 0, len(args))
	for _, arg := range args {
		key, err := solana.PublicKeyFromBase58(arg)
		if err != nil {
			klog.Exitf("invalid pubkey %q: %s", arg, err)
		}
		keys = append(keys, key)
	}

	client := rpcclient.NewRpcClient(rpcUrl)
	f := fetcher.NewRpcFetcherWithClient(client)
	f.Concurrency = concurrency

	if slot, err := client.GetSlot(c.Context()); err == nil {
		klog.Infof("fetching %d accounts from %s at slot %d", len(keys), rpcUrl, slot)
	}

	var accts []accounts.KeyedAccount
	var err error
	if withDefault {
		accts, err = f.FetchAccountsWithDefault(c.Context(), keys)
	} else {
		accts, err = f.FetchAccounts(c.Context(), keys)
	}
	if err != nil {
		klog.Exitf("failed to fetch accounts: %s", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		klog.Exitf("%s", err)
	}
	for _, ka := range accts {
		path := filepath.Join(outDir, ka.Key.String()+".json")
		if err := fetcher.WriteFile(path, []accounts.KeyedAccount{ka}); err != nil {
			klog.Exitf("failed to write %s: %s", path, err)
		}
	}
	if missing := len(keys) - len(accts); missing > 0 {
		klog.Warningf("%d accounts not found", missing)
	}
	klog.Infof("wrote %d accounts to %s", len(accts), outDir)
}

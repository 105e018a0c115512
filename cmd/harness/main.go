package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.firedancer.io/harness/cmd/harness/exec"
	"go.firedancer.io/harness/cmd/harness/fetch"
	"go.firedancer.io/harness/cmd/harness/fixture"
	"k8s.io/klog/v2"
)

var cmd = cobra.Command{
	Use:   "harness",
	Short: "Run programs against a standalone sealevel runtime",
}

func init() {
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	cmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cmd.AddCommand(
		&exec.Cmd,
		&fetch.Cmd,
		&fixture.Cmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	cobra.CheckErr(cmd.ExecuteContext(ctx))
}

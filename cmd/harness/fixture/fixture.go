package fixture

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.firedancer.io/harness/pkg/fixture"
	"go.firedancer.io/harness/pkg/harness"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var Cmd = cobra.Command{
	Use:   "fixture",
	Short: "Replay instruction fixtures",
}

var runCmd = cobra.Command{
	Use:   "run <path>...",
	Short: "Replay fixture files or directories and report mismatches",
	Args:  cobra.MinimumNArgs(1),
	Run:   run,
}

var (
	jobs           int
	configPath     string
	ignoreCU       bool
	ignoreAccounts bool
)

func init() {
	runCmd.Flags().IntVarP(&jobs, "jobs", "j", 8, "Fixtures replayed concurrently")
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "Harness config file (YAML)")
	runCmd.Flags().BoolVar(&ignoreCU, "ignore-cu", false, "Do not compare compute units consumed")
	runCmd.Flags().BoolVar(&ignoreAccounts, "ignore-accounts", false, "Do not compare resulting accounts")

	Cmd.AddCommand(&runCmd)
}

func run(c *cobra.Command, args []string) {
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

	checks := fixture.CompareAll
	if ignoreCU {
		checks = checks.Without(fixture.CompareComputeUnits)
	}
	if ignoreAccounts {
		checks = checks.Without(fixture.CompareAccounts)
	}

	paths, err := fixture.Expand(args)
	if err != nil {
		klog.Exitf("failed to list fixtures: %s", err)
	}
	klog.Infof("replaying %d fixtures with %d jobs", len(paths), jobs)

	var failed atomic.Int64
	group, ctx := errgroup.WithContext(c.Context())
	group.SetLimit(max(1, jobs))
	for _, path := range paths {
		path := path
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !replay(path, base, setup, checks) {
				failed.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		klog.Exitf("interrupted: %s", err)
	}

	if n := failed.Load(); n > 0 {
		klog.Exitf("%d of %d fixtures failed", n, len(paths))
	}
	klog.Infof("all %d fixtures passed", len(paths))
}

func replay(path string, base harness.Config, setup []fixture.Setup, checks fixture.Checks) bool {
	f, err := fixture.Load(path)
	if err != nil {
		klog.Errorf("%s", err)
		return false
	}
	result, err := f.Run(base, setup...)
	if err != nil {
		klog.Errorf("%s: %s", path, err)
		return false
	}
	mismatches, err := fixture.Compare(f.Output, result, checks)
	if err != nil {
		klog.Errorf("%s: %s", path, err)
		return false
	}
	if len(mismatches) == 0 {
		klog.V(2).Infof("PASS %s (%d CU)", f.Name, result.ComputeUnitsConsumed)
		return true
	}
	msg := fmt.Sprintf("FAIL %s", f.Name)
	for _, m := range mismatches {
		msg += "\n\t" + m.String()
	}
	klog.Error(msg)
	return false
}

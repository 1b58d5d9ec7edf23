// Command holebench benchmarks sustained, latency-measured I/O against a
// file laid out with a controllable mix of populated and sparse blocks.
package main

import (
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/pepyakin/holebench/pkg/config"
	"github.com/pepyakin/holebench/pkg/run"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	var (
		cfgFile string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "holebench",
		Short: "I/O benchmark over files with a controlled populated/sparse block mix",
		Long: `holebench lays out a target file with a configurable fraction of
populated blocks, then drives a sustained read workload against the
populated set using one of the interchangeable execution engines
(io_uring, mmap or synchronous syscalls), reporting IOPS and latency
distributions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				loaded, err := config.Load(cfgFile)
				if err != nil {
					return err
				}
				cfg = *loaded
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if verbose {
				spew.Fdump(cmd.ErrOrStderr(), cfg)
			}
			return run.New(&cfg, cmd.OutOrStdout()).Run()
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&cfg.Filename, "filename", "", "target file (required unless --config is given)")
	fl.StringVar(&cfg.Engine, "engine", cfg.Engine, "measurement engine: uring, mmap or sync")
	fl.StringVar(&cfg.LayoutEngine, "layout-engine", "", "engine for the layout phase (defaults to --engine)")
	fl.Var(&cfg.BS, "bs", "block size, a power of two of at least 512 bytes")
	fl.Var(&cfg.Size, "size", "target file size, a multiple of the block size")
	fl.Float64Var(&cfg.Ratio, "ratio", cfg.Ratio, "populated fraction of the file, within [0, 1]")
	fl.IntVar(&cfg.NumJobs, "numjobs", cfg.NumJobs, "worker threads per backend")
	fl.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "maximum in-flight operations")
	fl.IntVar(&cfg.Depth, "depth", cfg.Depth, "kernel ring depth per uring worker (0 derives it from the backlog)")
	fl.BoolVar(&cfg.Direct, "direct", cfg.Direct, "bypass the page cache (O_DIRECT)")
	fl.BoolVar(&cfg.SkipLayout, "skip-layout", cfg.SkipLayout, "measure an already laid out file")
	fl.BoolVar(&cfg.NoSparse, "no-sparse", cfg.NoSparse, "zero-fill unpopulated blocks instead of leaving holes")
	fl.BoolVar(&cfg.FallocKeepSize, "falloc-keep-size", cfg.FallocKeepSize, "preallocate with FALLOC_FL_KEEP_SIZE")
	fl.BoolVar(&cfg.FallocZeroRange, "falloc-zero-range", cfg.FallocZeroRange, "preallocate with FALLOC_FL_ZERO_RANGE")
	fl.Var(&cfg.RampTime, "ramp-time", "warm-up interval excluded from statistics")
	fl.Var(&cfg.RunTime, "run-time", "measured run duration")
	fl.Int64Var(&cfg.Seed, "seed", cfg.Seed, "seed for layout shuffling and payload generation")
	fl.StringVar(&cfgFile, "config", "", "YAML job file; replaces the other flags")
	fl.BoolVar(&verbose, "verbose", false, "dump the effective configuration before running")

	return cmd
}

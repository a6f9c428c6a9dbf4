// Command necessist mutates a test suite's statements and method calls one
// candidate at a time, running the covering test after each mutation to
// find assertions that pass no matter what the code under them does.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mpyw/necessist/internal/diag"
	"github.com/mpyw/necessist/pkg/backend"
	"github.com/mpyw/necessist/pkg/backend/golang"
	"github.com/mpyw/necessist/pkg/orchestrator"
)

var opts orchestrator.Options

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "necessist: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "necessist [flags] [TEST_FILES...] [-- ARGS...]",
	Short: "Find untested assertions by mutating test suites and re-running them",
	Long: `necessist walks a project's test suites, builds one candidate per
removable statement or method call, and for each candidate deletes it,
rebuilds, and re-runs the covering test. A candidate whose test still
passes after the deletion marks an assertion the test suite isn't
actually exercising.`,
	RunE: run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.Root, "root", ".", "project root to analyze")
	f.StringVar(&opts.Framework, "framework", "", "backend to use (default: auto-detect; error if more than one applies)")
	f.IntVar(&opts.Timeout, "timeout", 60, "per-candidate run timeout in seconds (0 = no timeout)")
	f.BoolVar(&opts.Verbose, "verbose", false, "print every candidate's outcome, not just passing ones")
	f.BoolVar(&opts.Quiet, "quiet", false, "suppress the final summary")
	f.StringSliceVar(&opts.Allow, "allow", nil, "suppress a warning ID (or \"all\")")
	f.StringSliceVar(&opts.Deny, "deny", nil, "escalate a warning ID (or \"all\") to a fatal error")
	f.BoolVar(&opts.Reset, "reset", false, "discard the persisted removal log before running")
	f.BoolVar(&opts.Resume, "resume", false, "skip candidates already recorded in the removal log")
	f.BoolVar(&opts.NoPersist, "no-persist", false, "don't read or write the removal log")
	f.BoolVar(&opts.Dump, "dump", false, "list candidates (kind, test, span) without running anything")
	f.BoolVar(&opts.DumpCandidates, "dump-candidates", false, "list candidate spans only, one per line, without running anything")
}

// backends lists every pluggable backend this build registers (§4.H
// "probes the set of registered backends").
func backends() []backend.Backend {
	return []backend.Backend{golang.New()}
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := diag.New(opts.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck
	opts.Logger = logger

	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		opts.ExtraArgs = args[dash:]
		args = args[:dash]
	}
	opts.Paths = args // positional TEST_FILES…: empty means "discover every test file" (§6)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cancelled atomic.Bool
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancelled.Store(true)
		cancel()
	}()
	defer signal.Stop(sigCh)

	_, err = orchestrator.Run(ctx, opts, backends(), cancelled.Load)
	return err
}

package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"looprig/internal/build"
	"looprig/internal/format"
	"looprig/internal/invoke"
	"looprig/internal/logging"
	"looprig/internal/pipeline"
	"looprig/internal/provision"
)

var runFlags struct {
	jar         string
	markdown    bool
	noLedger    bool
	failOnError bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full regression: build, analyze every test case, archive",
	Long: `Compiles the whole corpus, makes sure the analysis jar is in the working
directory, runs it once per test case and copies the exchange directories and
log into <root>/<case> after each run. The bundles are then archived to
<root>.tgz and the run is recorded in the ledger.

A test case whose run writes to stderr is reported and the next case still
runs. Compile failures exit with status 2, a missing jar with status 3.`,
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.jar, "jar", "j", "", "jar to copy in when it is missing (default from config)")
	f.BoolVar(&runFlags.markdown, "markdown", false, "print the summary as a Markdown table")
	f.BoolVar(&runFlags.noLedger, "no-ledger", false, "do not record the run in the ledger")
	f.BoolVar(&runFlags.failOnError, "fail-on-error", false, "exit with status 4 when any test case run failed")
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := &pipeline.Pipeline{Config: cfg, Invoker: invoke.Exec{}}
	if !runFlags.noLedger {
		st, err := openLedger()
		if err != nil {
			logging.New("cli").Warn("run ledger unavailable, continuing without it", "error", err)
		} else {
			defer st.Close()
			p.Store = st
		}
	}

	rep, err := p.Run(ctx, runFlags.jar)
	var (
		bErr *build.Error
		pErr *provision.Error
	)
	switch {
	case errors.As(err, &bErr):
		return &ExitError{Code: exitBuildFailed, Err: err}
	case errors.As(err, &pErr):
		return &ExitError{Code: exitProvisionFailed, Err: err}
	case err != nil:
		return err
	}

	mode := format.ASCII
	if runFlags.markdown {
		mode = format.Markdown
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, format.Outcomes(mode, rep.CaseOutcomes()))
	fmt.Fprintf(out, "run %s: archive %s (%d members)\n", rep.RunID, rep.Archive, len(rep.Digest))

	if n := rep.Failed(); n > 0 && runFlags.failOnError {
		return &ExitError{Code: exitCasesFailed, Err: fmt.Errorf("%d of %d test case runs failed", n, len(rep.Outcomes))}
	}
	return nil
}


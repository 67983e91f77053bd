package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"looprig/internal/format"
)

var statusFlags struct {
	limit    int
	markdown bool
	runID    string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded pipeline runs",
	Long:  "Lists recent runs from the ledger, or the per-case outcomes of one run with --run.",
	RunE:  runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.IntVarP(&statusFlags.limit, "limit", "n", 10, "number of runs to list (0 = all)")
	f.BoolVar(&statusFlags.markdown, "markdown", false, "render Markdown tables")
	f.StringVar(&statusFlags.runID, "run", "", "show the case outcomes of this run id")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	st, err := openLedger()
	if err != nil {
		return err
	}
	defer st.Close()

	mode := format.ASCII
	if statusFlags.markdown {
		mode = format.Markdown
	}
	out := cmd.OutOrStdout()

	if statusFlags.runID != "" {
		run, err := st.GetRun(statusFlags.runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %q not found", statusFlags.runID)
		}
		outs, err := st.ListOutcomes(run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run:     %s\n", run.ID)
		fmt.Fprintf(out, "Status:  %s\n", run.Status)
		fmt.Fprintf(out, "Started: %s\n", run.StartedAt)
		if run.EndedAt != "" {
			fmt.Fprintf(out, "Ended:   %s\n", run.EndedAt)
		}
		if run.Error != "" {
			fmt.Fprintf(out, "Error:   %s\n", run.Error)
		}
		fmt.Fprintln(out, format.Outcomes(mode, outs))
		return nil
	}

	runs, err := st.ListRuns(statusFlags.limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet. Run 'looprig run' first.")
		return nil
	}
	fmt.Fprintln(out, format.Runs(mode, runs))
	return nil
}

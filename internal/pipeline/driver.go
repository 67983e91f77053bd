package pipeline

import (
	"context"
	"fmt"
	"time"

	"looprig/internal/collect"
	"looprig/internal/config"
	"looprig/internal/corpus"
	"looprig/internal/invoke"
	"looprig/internal/logging"
	"looprig/internal/store"
)

// RunOutcome is the result of running the analysis artifact for one case and
// snapshotting what it left behind.
type RunOutcome struct {
	Case            string          `json:"case"`
	ExitedWithError bool            `json:"exited_with_error"`
	Reason          string          `json:"reason,omitempty"`
	ExitCode        int             `json:"exit_code"`
	TimedOut        bool            `json:"timed_out,omitempty"`
	Duration        time.Duration   `json:"duration"`
	Stdout          []byte          `json:"-"`
	Stderr          []byte          `json:"-"`
	Bundle          *collect.Bundle `json:"bundle,omitempty"`
}

// Record is o as a ledger row.
func (o RunOutcome) Record(runID string, seq int) *store.CaseOutcome {
	co := &store.CaseOutcome{
		RunID:      runID,
		Seq:        seq,
		Case:       o.Case,
		ExitCode:   o.ExitCode,
		Failed:     o.ExitedWithError,
		Reason:     o.Reason,
		DurationMS: o.Duration.Milliseconds(),
	}
	if o.Bundle != nil {
		co.BundleDir = o.Bundle.Dir
		co.Files = len(o.Bundle.Files)
	}
	return co
}

// Driver runs the artifact once per case, strictly one after another, and
// collects a bundle after each run.
type Driver struct {
	Invoker   invoke.Invoker
	Collector *collect.Collector
	// Isolate empties the exchange directories before each case. When false,
	// files from earlier cases stay visible to later bundles.
	Isolate bool

	Jar     string
	Command []string // argv template with {jar} and {case}
	Vars    map[string]string
	Timeout time.Duration
	Dir     string
	Root    string // aggregate root bundles are created under

	// Observe, if set, is called after each case has been collected.
	Observe func(seq int, o RunOutcome)
}

// Drive processes cases in order. A run that writes to stderr, times out or
// cannot start is logged and recorded, and the next case still runs. A
// collection failure stops the drive and is returned with the outcomes so
// far. Cancelling ctx stops before the next case.
func (d *Driver) Drive(ctx context.Context, cases []corpus.TestCase) ([]RunOutcome, error) {
	logger := logging.New("driver")
	outcomes := make([]RunOutcome, 0, len(cases))
	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		if d.Isolate {
			if err := d.Collector.Exchange.Reset(); err != nil {
				return outcomes, err
			}
		}

		vars := map[string]string{
			config.PlaceholderJar:  d.Jar,
			config.PlaceholderCase: tc.Name,
		}
		for k, v := range d.Vars {
			vars[k] = v
		}
		args := config.Expand(d.Command, vars)
		logger.Info("running", "case", tc.Name, "seq", i+1, "of", len(cases))
		out, err := d.Invoker.Invoke(ctx, invoke.Invocation{Args: args, Dir: d.Dir, Timeout: d.Timeout})
		if err != nil {
			return outcomes, fmt.Errorf("run %s: %w", tc.Name, err)
		}

		ro := RunOutcome{
			Case:            tc.Name,
			ExitedWithError: out.Failed(),
			ExitCode:        out.ExitCode,
			TimedOut:        out.TimedOut,
			Duration:        out.Duration,
			Stdout:          out.Stdout,
			Stderr:          out.Stderr,
		}
		if ro.ExitedWithError {
			ro.Reason = out.Reason()
			logger.Error("run failed, continuing", "case", tc.Name, "reason", ro.Reason, "stderr", string(out.Stderr))
		} else {
			logger.Info("run done", "case", tc.Name, "duration", out.Duration)
		}

		b, err := d.Collector.Collect(tc.Name, d.Root)
		if err != nil {
			return outcomes, err
		}
		ro.Bundle = b
		outcomes = append(outcomes, ro)
		if d.Observe != nil {
			d.Observe(i, ro)
		}
	}
	return outcomes, nil
}

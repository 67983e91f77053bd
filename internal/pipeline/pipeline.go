// Package pipeline chains the regression stages: compile the corpus, put the
// analysis artifact in place, run it once per case collecting a bundle each
// time, archive the bundles and record the run in the ledger.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/google/uuid"

	"looprig/internal/archive"
	"looprig/internal/build"
	"looprig/internal/collect"
	"looprig/internal/config"
	"looprig/internal/corpus"
	"looprig/internal/fsutil"
	"looprig/internal/invoke"
	"looprig/internal/logging"
	"looprig/internal/provision"
	"looprig/internal/store"
)

// Pipeline runs the full regression for one Config.
type Pipeline struct {
	Config  *config.Config
	Invoker invoke.Invoker
	// Store receives the run history. Nil disables the ledger.
	Store store.Store
	// NewID generates run ids; defaults to random UUIDs.
	NewID func() string
	// Observe is forwarded to the Driver.
	Observe func(seq int, o RunOutcome)
}

// Report summarizes one pipeline run.
type Report struct {
	RunID    string            `json:"run_id"`
	Compiled []string          `json:"compiled"`
	Jar      string            `json:"jar"`
	Outcomes []RunOutcome      `json:"outcomes"`
	Archive  string            `json:"archive,omitempty"`
	Digest   map[string]string `json:"digest,omitempty"`
}

// Failed counts the cases whose run reported an error.
func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.ExitedWithError {
			n++
		}
	}
	return n
}

// CaseOutcomes converts the outcomes to ledger rows.
func (r *Report) CaseOutcomes() []*store.CaseOutcome {
	out := make([]*store.CaseOutcome, len(r.Outcomes))
	for i, o := range r.Outcomes {
		out[i] = o.Record(r.RunID, i)
	}
	return out
}

// Exchange returns the exchange handle for cfg with paths resolved.
func Exchange(cfg *config.Config) collect.Exchange {
	x := collect.Exchange{LogFile: cfg.Path(cfg.Exchange.LogFile)}
	for _, d := range cfg.Exchange.Dirs {
		x.Dirs = append(x.Dirs, cfg.Path(d))
	}
	return x
}

// Run executes every stage. jarSource overrides the configured artifact
// source when non-empty. Compile and provisioning failures abort before any
// case runs and are returned as *build.Error and *provision.Error. Failed
// case runs do not abort; they are counted in the report.
func (p *Pipeline) Run(ctx context.Context, jarSource string) (*Report, error) {
	logger := logging.New("pipeline")
	newID := p.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	rep := &Report{RunID: newID()}
	l := &ledger{store: p.Store, run: &store.Run{ID: rep.RunID, Selector: corpus.All}}
	l.start()

	err := p.run(ctx, rep, jarSource, l)
	l.finish(rep, err)
	if err != nil {
		logger.Error("pipeline aborted", "run_id", rep.RunID, "error", err)
		return rep, err
	}
	logger.Info("pipeline finished", "run_id", rep.RunID, "cases", len(rep.Outcomes), "failed", rep.Failed(), "archive", rep.Archive)
	return rep, nil
}

func (p *Pipeline) run(ctx context.Context, rep *Report, jarSource string, l *ledger) error {
	cfg := p.Config
	cases, err := corpus.Load(cfg.Path(cfg.Corpus.SourceDir), cfg.Corpus.Extension)
	if err != nil {
		return err
	}

	res, err := build.NewStage(cfg, p.Invoker).Compile(ctx, cases, corpus.All)
	if res != nil {
		rep.Compiled = res.Compiled
	}
	if err != nil {
		return err
	}

	if jarSource == "" {
		jarSource = cfg.Path(cfg.Artifact.Source)
	}
	jar, err := provision.Ensure(cfg.Path(cfg.Artifact.Name), jarSource)
	if err != nil {
		return err
	}
	rep.Jar = jar

	root := cfg.Path(cfg.Output.Root)
	dest := cfg.ArchivePath()
	if err := fsutil.RecreateDir(root); err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove old archive: %w", err)
	}

	d := &Driver{
		Invoker:   p.Invoker,
		Collector: &collect.Collector{Exchange: Exchange(cfg)},
		Isolate:   cfg.Exchange.Isolate,
		Jar:       jar,
		Command:   cfg.Commands.Run,
		Vars: map[string]string{
			config.PlaceholderHost: cfg.Solver.Host,
			config.PlaceholderPort: strconv.Itoa(cfg.Solver.Port),
		},
		Timeout: cfg.Timeouts.Run.Std(),
		Dir:     cfg.WorkDir,
		Root:    root,
		Observe: func(seq int, o RunOutcome) {
			l.outcome(seq, o)
			if p.Observe != nil {
				p.Observe(seq, o)
			}
		},
	}
	rep.Outcomes, err = d.Drive(ctx, cases)
	if err != nil {
		return err
	}

	if err := archive.Create(root, dest); err != nil {
		return err
	}
	rep.Archive = dest
	if rep.Digest, err = archive.Digest(dest); err != nil {
		return fmt.Errorf("digest archive: %w", err)
	}
	return nil
}

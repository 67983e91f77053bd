// Package build compiles the regression corpus before any analysis run.
package build

import (
	"context"
	"fmt"
	"os"
	"time"

	"looprig/internal/config"
	"looprig/internal/corpus"
	"looprig/internal/fsutil"
	"looprig/internal/invoke"
	"looprig/internal/logging"
)

// Error is a compile failure. It aborts the whole pipeline.
type Error struct {
	Case    corpus.TestCase
	Outcome *invoke.Outcome
}

func (e *Error) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Case.Name, e.Outcome.Reason())
}

func (e *Error) Unwrap() error { return e.Outcome.SpawnErr }

// Stage compiles corpus sources into OutDir with Command.
type Stage struct {
	Invoker invoke.Invoker
	OutDir  string
	Command []string // argv template with {file} and {out}
	Timeout time.Duration
	Dir     string // working directory for the compiler
}

// NewStage builds a Stage from the config layout.
func NewStage(cfg *config.Config, inv invoke.Invoker) *Stage {
	return &Stage{
		Invoker: inv,
		OutDir:  cfg.Path(cfg.Corpus.OutDir),
		Command: cfg.Commands.Compile,
		Timeout: cfg.Timeouts.Compile.Std(),
		Dir:     cfg.WorkDir,
	}
}

// Result lists the cases compiled, in order.
type Result struct {
	Compiled []string
}

// Compile compiles the cases picked by sel. With the corpus.All selector the
// output directory is recreated from empty first; a single named case is
// compiled into the existing directory. The first failed compile stops the
// stage and is returned as *Error; nothing after it is compiled.
func (s *Stage) Compile(ctx context.Context, cases []corpus.TestCase, sel string) (*Result, error) {
	logger := logging.New("build")
	picked, err := corpus.Select(cases, sel)
	if err != nil {
		return nil, err
	}

	if sel == "" || sel == corpus.All {
		if fsutil.Exists(s.OutDir) {
			logger.Info("out dir exists, removing and remaking", "dir", s.OutDir)
		}
		if err := fsutil.RecreateDir(s.OutDir); err != nil {
			return nil, err
		}
		logger.Info("found source files", "count", len(picked), "out_dir", s.OutDir)
	} else if err := os.MkdirAll(s.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}

	res := &Result{}
	for _, tc := range picked {
		args := config.Expand(s.Command, map[string]string{
			config.PlaceholderFile: tc.SourcePath,
			config.PlaceholderOut:  s.OutDir,
		})
		logger.Info("compiling", "case", tc.Name, "file", tc.SourcePath)
		out, err := s.Invoker.Invoke(ctx, invoke.Invocation{Args: args, Dir: s.Dir, Timeout: s.Timeout})
		if err != nil {
			return res, fmt.Errorf("compile %s: %w", tc.Name, err)
		}
		if out.Failed() {
			logger.Error("compile failed", "case", tc.Name, "reason", out.Reason(), "stderr", string(out.Stderr))
			return res, &Error{Case: tc, Outcome: out}
		}
		res.Compiled = append(res.Compiled, tc.Name)
	}
	return res, nil
}

// Package invoke spawns external executables, blocks until they exit and
// returns their captured output as a typed Outcome.
package invoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"looprig/internal/logging"
)

// waitDelay bounds how long Wait keeps draining pipes after the child exits
// or is killed; grandchildren holding stdout open must not hang the pipeline.
const waitDelay = 5 * time.Second

// Invocation describes one external process call.
type Invocation struct {
	Args    []string      // argv; Args[0] is looked up in PATH
	Dir     string        // working directory; empty = current
	Env     []string      // extra KEY=VALUE entries appended to the parent env
	Timeout time.Duration // zero = no deadline
}

func (inv Invocation) String() string { return strings.Join(inv.Args, " ") }

// Outcome is what a finished process left behind.
type Outcome struct {
	Args     []string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
	TimedOut bool
	// SpawnErr is set when the process could not be started at all.
	SpawnErr error
}

// Failed reports whether the call counts as failed: anything on stderr, an
// expired deadline, or a process that never started.
func (o *Outcome) Failed() bool {
	return o.SpawnErr != nil || o.TimedOut || len(o.Stderr) > 0
}

// Reason is a one-line description of why Failed is true.
func (o *Outcome) Reason() string {
	switch {
	case o.SpawnErr != nil:
		return o.SpawnErr.Error()
	case o.TimedOut:
		return fmt.Sprintf("timed out after %s", o.Duration.Round(time.Millisecond))
	case len(o.Stderr) > 0:
		return firstLine(o.Stderr)
	case o.ExitCode != 0:
		return fmt.Sprintf("exit status %d", o.ExitCode)
	}
	return ""
}

// Invoker runs external processes. Implementations must block until the
// process has exited.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (*Outcome, error)
}

// Exec is the os/exec backed Invoker.
type Exec struct{}

// Invoke runs inv to completion. A non-zero exit, output on stderr, a spawn
// failure or an expired inv.Timeout are all reported in the Outcome; the error
// is non-nil only when ctx itself was cancelled.
func (Exec) Invoke(ctx context.Context, inv Invocation) (*Outcome, error) {
	if len(inv.Args) == 0 {
		return nil, errors.New("invoke: empty argv")
	}
	logger := logging.New("invoke")

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if inv.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, inv.Timeout)
	}
	defer cancel()

	cmd := exec.Command(inv.Args[0], inv.Args[1:]...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(cmd.Environ(), inv.Env...)
	}
	configureCommandProcess(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	out := &Outcome{Args: append([]string(nil), inv.Args...), ExitCode: -1}
	start := time.Now()
	logger.Debug("spawning", "cmd", inv.String(), "dir", inv.Dir, "timeout", inv.Timeout)
	if err := cmd.Start(); err != nil {
		out.SpawnErr = fmt.Errorf("start %s: %w", inv.Args[0], err)
		out.Duration = time.Since(start)
		return out, nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		terminateCommandProcess(cmd)
		waitErr = <-done
	}
	out.Duration = time.Since(start)
	out.Stdout = stdout.Bytes()
	out.Stderr = stderr.Bytes()

	if runCtx.Err() != nil {
		if ctx.Err() != nil {
			return out, fmt.Errorf("invoke %s: %w", inv.Args[0], ctx.Err())
		}
		out.TimedOut = true
		logger.Warn("deadline expired, process group killed", "cmd", inv.String(), "timeout", inv.Timeout)
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		out.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		out.ExitCode = exitErr.ExitCode()
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// exited, but a descendant kept the pipes open past waitDelay
		out.ExitCode = cmd.ProcessState.ExitCode()
	default:
		out.SpawnErr = fmt.Errorf("wait %s: %w", inv.Args[0], waitErr)
	}
	logger.Debug("exited", "cmd", inv.String(), "exit_code", out.ExitCode, "duration", out.Duration, "stderr_bytes", len(out.Stderr))
	return out, nil
}

func firstLine(b []byte) string {
	s := strings.TrimSpace(string(b))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

// Package invoketest provides a scripted Invoker for tests that must not
// depend on a JDK being installed.
package invoketest

import (
	"context"
	"sync"

	"looprig/internal/invoke"
)

// Fake records every invocation and answers with Func. A nil Func yields a
// clean exit with no output.
type Fake struct {
	Func func(inv invoke.Invocation) *invoke.Outcome

	mu    sync.Mutex
	calls []invoke.Invocation
}

func (f *Fake) Invoke(ctx context.Context, inv invoke.Invocation) (*invoke.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()
	if f.Func == nil {
		return &invoke.Outcome{Args: inv.Args}, nil
	}
	out := f.Func(inv)
	if out.Args == nil {
		out.Args = inv.Args
	}
	return out, nil
}

// Calls returns a copy of the recorded invocations in call order.
func (f *Fake) Calls() []invoke.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]invoke.Invocation(nil), f.calls...)
}

// Argvs returns only the argv of each recorded call.
func (f *Fake) Argvs() [][]string {
	calls := f.Calls()
	out := make([][]string, len(calls))
	for i, c := range calls {
		out[i] = c.Args
	}
	return out
}

// Package executortest provides an in-memory Executor for tests.
package executortest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/pimon/internal/executor"
)

// ErrNotFound mimics a missing binary.
var ErrNotFound = errors.New("executable file not found in $PATH")

// Fake records every command and answers with Handler (success when nil).
type Fake struct {
	Handler func(cmd executor.Command) executor.Result

	mu    sync.Mutex
	calls []executor.Command
	ctxs  []context.Context
}

func (f *Fake) Run(ctx context.Context, cmd executor.Command) executor.Result {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.ctxs = append(f.ctxs, ctx)
	handler := f.Handler
	f.mu.Unlock()

	if handler == nil {
		return Succeed("")
	}
	return handler(cmd)
}

// Calls returns a copy of the recorded commands.
func (f *Fake) Calls() []executor.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executor.Command(nil), f.calls...)
}

// Contexts returns the context each recorded command ran with.
func (f *Fake) Contexts() []context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]context.Context(nil), f.ctxs...)
}

// CallLines renders the recorded commands as "name arg1 arg2" strings.
func (f *Fake) CallLines() []string {
	calls := f.Calls()
	lines := make([]string, 0, len(calls))
	for _, c := range calls {
		lines = append(lines, c.String())
	}
	return lines
}

// Succeed is a zero-exit result with the given stdout.
func Succeed(stdout string) executor.Result {
	return executor.Result{Outcome: executor.Success, Stdout: stdout}
}

// Fail is a non-zero exit with stderr detail.
func Fail(code int, detail string) executor.Result {
	return executor.Result{Outcome: executor.Failure, ExitCode: code, Detail: detail}
}

// Broken is a command that could not be run at all.
func Broken(err error) executor.Result {
	return executor.Result{Outcome: executor.Failure, ExitCode: -1, Detail: err.Error(), Err: err}
}

// Match routes commands whose String() starts with a prefix to a result;
// anything else succeeds with empty output.
func Match(routes map[string]executor.Result) func(executor.Command) executor.Result {
	return func(cmd executor.Command) executor.Result {
		line := cmd.String()
		best := ""
		for prefix := range routes {
			if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
				best = prefix
			}
		}
		if best == "" {
			return Succeed("")
		}
		return routes[best]
	}
}

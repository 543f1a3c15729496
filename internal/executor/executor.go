// Package executor runs host commands on behalf of the controllers. It is
// the only place in pimon that starts external processes: every call is
// bounded by a timeout, privileged calls are prefixed with the configured
// escalation command, and the outcome is returned as a typed Result rather
// than an error so callers can decide what to surface.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/logger"
)

// DefaultTimeout bounds a command when neither the runner nor the command
// sets one.
const DefaultTimeout = 30 * time.Second

// maxDetail caps how much stderr is kept in a Result.
const maxDetail = 1024

// Command describes one process invocation. Args are passed as argv and
// never through a shell.
type Command struct {
	Name       string
	Args       []string
	Env        []string      // extra KEY=VALUE pairs for the child process
	Privileged bool          // run through the escalation prefix
	Timeout    time.Duration // overrides the runner timeout when > 0
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Outcome is the coarse result of a command.
type Outcome int

const (
	Success Outcome = iota
	Failure
)

func (o Outcome) String() string {
	if o == Success {
		return "success"
	}
	return "failure"
}

// Result is what a command produced.
//
// Err is non-nil only when the process could not be run to completion
// (binary missing, permission to exec denied, timeout). A process that ran
// and exited non-zero is a Failure with a nil Err.
type Result struct {
	Outcome  Outcome
	ExitCode int // -1 when the process did not exit on its own
	Stdout   string
	Detail   string
	Err      error
}

// Succeeded reports whether the command exited zero.
func (r Result) Succeeded() bool { return r.Outcome == Success }

// Executor is the seam between controllers and the host.
type Executor interface {
	Run(ctx context.Context, cmd Command) Result
}

// Observer receives one call per finished command.
type Observer interface {
	ObserveCommand(name string, elapsed time.Duration, success bool)
}

// Options configures a Runner.
type Options struct {
	Timeout          time.Duration
	PrivilegeCommand []string // ex: ["sudo", "-n"]; empty runs privileged commands directly
	Observer         Observer // optional
}

// Runner executes commands with os/exec.
type Runner struct {
	timeout   time.Duration
	privilege []string
	observer  Observer
	logger    logger.Logger
}

// New creates a Runner.
func New(opts Options, log logger.Logger) *Runner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		timeout:   timeout,
		privilege: append([]string(nil), opts.PrivilegeCommand...),
		observer:  opts.Observer,
		logger:    log,
	}
}

// Run executes cmd and never panics or returns an error; see Result.
func (r *Runner) Run(ctx context.Context, cmd Command) Result {
	timeout := r.timeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv, env := r.argv(cmd)

	var stdout, stderr bytes.Buffer
	proc := exec.CommandContext(ctx, argv[0], argv[1:]...)
	proc.Stdout = &stdout
	proc.Stderr = &stderr
	proc.WaitDelay = time.Second
	if len(env) > 0 {
		proc.Env = append(os.Environ(), env...)
	}

	r.logger.Debug("executing command",
		logger.String("command", cmd.String()),
		logger.Bool("privileged", cmd.Privileged),
		logger.Duration("timeout", timeout))

	start := time.Now()
	runErr := proc.Run()
	elapsed := time.Since(start)

	res := classify(ctx, cmd, runErr, &stdout, &stderr)

	if r.observer != nil {
		r.observer.ObserveCommand(cmd.Name, elapsed, res.Succeeded())
	}

	if !res.Succeeded() {
		r.logger.Warn("command failed",
			logger.String("command", cmd.String()),
			logger.Int("exit_code", res.ExitCode),
			logger.String("detail", res.Detail),
			logger.Duration("elapsed", elapsed))
	}

	return res
}

// argv builds the final argument vector. Privileged commands that carry
// environment go through env(1) because sudo resets the environment.
func (r *Runner) argv(cmd Command) ([]string, []string) {
	if !cmd.Privileged || len(r.privilege) == 0 {
		return append([]string{cmd.Name}, cmd.Args...), cmd.Env
	}

	argv := append([]string(nil), r.privilege...)
	if len(cmd.Env) > 0 {
		argv = append(argv, "env")
		argv = append(argv, cmd.Env...)
	}
	argv = append(argv, cmd.Name)
	argv = append(argv, cmd.Args...)
	return argv, nil
}

func classify(ctx context.Context, cmd Command, runErr error, stdout, stderr *bytes.Buffer) Result {
	res := Result{Stdout: stdout.String()}

	if runErr == nil {
		res.Outcome = Success
		return res
	}

	res.Outcome = Failure
	res.ExitCode = -1

	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Err = fmt.Errorf("%s: %w", cmd, ctxErr)
		res.Detail = res.Err.Error()
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		res.Detail = formatDetail(stderr, runErr)
		return res
	}

	res.Err = fmt.Errorf("%s: %w", cmd, runErr)
	res.Detail = formatDetail(stderr, runErr)
	return res
}

// formatDetail prefers what the command wrote to stderr over the generic
// exec error.
func formatDetail(stderr *bytes.Buffer, err error) string {
	detail := strings.TrimSpace(stderr.String())
	if detail == "" {
		detail = err.Error()
	}
	if len(detail) > maxDetail {
		detail = detail[:maxDetail] + "…"
	}
	return detail
}

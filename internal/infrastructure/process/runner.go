// Package process runs host binaries and captures their output.
//
// A Runner reports three outcomes distinctly: the process could not be
// started (SpawnError), the caller gave up (ErrAborted), or the process ran
// to completion with some exit status (Result, nil error). A non-zero exit is
// never an error at this layer; interpreting it is the caller's job.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrAborted is returned when the caller's context ended before the process
// finished. The context error is wrapped alongside it.
var ErrAborted = errors.New("command aborted")

// Result is the captured state of a finished process
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// SpawnError means the binary could not be started at all
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Runner executes a binary with arguments
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(ctx context.Context, name string, args ...string) (Result, error)

// Run calls f
func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f(ctx, name, args...)
}

// ExecRunner runs binaries with os/exec. Each child gets its own process
// group, which is killed as a whole when the context is done.
type ExecRunner struct {
	Dir string
	Env []string
}

// NewExecRunner creates a runner inheriting the service environment
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts name with args and waits for it
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	res := Result{ExitCode: -1}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%w: %w", ErrAborted, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = r.Env
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return res, &SpawnError{Name: name, Err: err}
	}

	pgid := cmd.Process.Pid
	var killed atomic.Bool
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// setuid children may refuse the signal; the wait below still
			// returns once they exit on their own.
			if unix.Kill(-pgid, unix.SIGKILL) == nil {
				killed.Store(true)
			}
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if killed.Load() && diedBySignal(cmd.ProcessState) {
		return res, fmt.Errorf("%w: %w", ErrAborted, context.Cause(ctx))
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return res, nil
		}
		return res, fmt.Errorf("wait for %s: %w", name, waitErr)
	}
	return res, nil
}

// diedBySignal reports whether the process was terminated by a signal
// rather than exiting. A child that finished before the kill landed keeps
// its real result.
func diedBySignal(state *os.ProcessState) bool {
	if state == nil {
		return false
	}
	status, ok := state.Sys().(syscall.WaitStatus)
	return ok && status.Signaled()
}

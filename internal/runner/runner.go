// Package runner launches external LAStools processes, relays their output
// line by line, and reports completion status.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/laspilot/laspilot/internal/task"
)

// scanBufSize bounds a single output line. lasinfo histograms can produce
// very long lines, so this is generous.
const scanBufSize = 1024 * 1024

// Listener receives output lines as the process produces them.
type Listener func(line string)

// Options holds per-runner limits. Zero values disable the corresponding
// limit.
type Options struct {
	MaxRuntime  time.Duration // kill the process after this total duration
	IdleTimeout time.Duration // kill the process after this long with no output

	// OnStart, when set, is called once the process has been spawned.
	OnStart func(runID string, startedAt time.Time)
}

// Runner executes one external process at a time and streams its merged
// stdout/stderr to the registered listener. LAStools writes reports to
// stderr, so both streams go through the same pipe, preserving the order
// the process produced them in.
type Runner struct {
	opts Options

	mu       sync.Mutex
	listener Listener
}

// New creates a runner with the given limits.
func New(opts Options) *Runner {
	return &Runner{opts: opts}
}

// SetListener registers the output listener. Safe to call while a run is
// in flight; subsequent lines go to the new listener.
func (r *Runner) SetListener(fn Listener) {
	r.mu.Lock()
	r.listener = fn
	r.mu.Unlock()
}

func (r *Runner) emit(line string) {
	r.mu.Lock()
	fn := r.listener
	r.mu.Unlock()
	if fn != nil {
		fn(line)
	}
}

// Run starts the invocation's process, relays its output, and blocks until
// it exits. The returned RunResult's exit code matches the process's actual
// exit code. Errors are *LaunchError (nothing spawned), *ProcessFailed
// (non-zero exit, timeout, or idle kill — partial result attached), or
// *IOError (output stream read failure).
func (r *Runner) Run(ctx context.Context, inv task.Invocation) (*task.RunResult, error) {
	inv = inv.Clone()

	exe, err := exec.LookPath(inv.Executable)
	if err != nil {
		return nil, &LaunchError{Executable: inv.Executable, Err: err}
	}
	if inv.Dir != "" {
		info, err := os.Stat(inv.Dir)
		if err != nil {
			return nil, &LaunchError{Executable: inv.Executable, Err: fmt.Errorf("working directory: %w", err)}
		}
		if !info.IsDir() {
			return nil, &LaunchError{Executable: inv.Executable, Err: fmt.Errorf("working directory %s is not a directory", inv.Dir)}
		}
	}

	if r.opts.MaxRuntime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.MaxRuntime)
		defer cancel()
	}

	// idle-aware context: kills the process if it stops producing output
	idleCtx, idleCancel := context.WithCancel(ctx)
	defer idleCancel()

	cmd := exec.CommandContext(idleCtx, exe, inv.Args...)
	cmd.Dir = inv.Dir
	setupProcessGroup(cmd)

	// one pipe for both streams: the OS interleaves writes, so the scanner
	// sees lines in the order the process emitted them
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Executable: inv.Executable, Err: fmt.Errorf("output pipe: %w", err)}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	start := time.Now()
	slog.Debug("spawning tool", "executable", exe, "args", inv.Args, "dir", inv.Dir)

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, &LaunchError{Executable: inv.Executable, Err: err}
	}
	// parent keeps only the read end
	_ = pw.Close()

	idleReader := newIdleTimeoutReader(pr, r.opts.IdleTimeout, idleCancel)
	defer idleReader.Stop()

	result := &task.RunResult{
		RunID:     uuid.New().String(),
		State:     task.StateRunning,
		StartedAt: start,
	}
	if r.opts.OnStart != nil {
		r.opts.OnStart(result.RunID, start)
	}

	scanner := bufio.NewScanner(idleReader)
	scanner.Buffer(make([]byte, scanBufSize), scanBufSize)
	for scanner.Scan() {
		line := scanner.Text()
		result.Lines = append(result.Lines, line)
		r.emit(line)
	}
	scanErr := scanner.Err()
	_ = pr.Close()

	exitErr := cmd.Wait()
	result.EndedAt = time.Now()
	result.Duration = result.EndedAt.Sub(result.StartedAt)
	result.ExitCode = exitCode(exitErr)

	switch {
	case idleReader.Idled():
		result.State = task.StateFailed
		result.Error = fmt.Sprintf("no output for %s", r.opts.IdleTimeout)
		return result, &ProcessFailed{Executable: inv.Executable, ExitCode: result.ExitCode, Reason: result.Error, Result: result}

	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.State = task.StateFailed
		result.Error = fmt.Sprintf("timed out after %s", r.opts.MaxRuntime)
		return result, &ProcessFailed{Executable: inv.Executable, ExitCode: result.ExitCode, Reason: result.Error, Result: result}

	case errors.Is(ctx.Err(), context.Canceled):
		result.State = task.StateCanceled
		result.Error = "canceled"
		return result, nil

	case scanErr != nil:
		result.State = task.StateFailed
		result.Error = fmt.Sprintf("read output: %v", scanErr)
		return result, &IOError{Err: scanErr}

	case exitErr != nil:
		result.State = task.StateFailed
		result.Error = fmt.Sprintf("exited with code %d", result.ExitCode)
		return result, &ProcessFailed{Executable: inv.Executable, ExitCode: result.ExitCode, Result: result}
	}

	result.State = task.StateCompleted
	slog.Debug("tool completed", "executable", exe, "duration", result.Duration, "lines", len(result.Lines))
	return result, nil
}

// exitCode extracts the process exit code from cmd.Wait's error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

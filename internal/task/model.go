package task

import (
	"strings"
	"time"
)

// RunState represents the lifecycle state of a tool run.
type RunState int

const (
	StatePending RunState = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCanceled
)

func (s RunState) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Invocation describes a single external tool run: the executable, its
// ordered argument list, and the working directory. The runner copies it
// at launch, so mutating an Invocation after Run has started has no effect
// on the running process.
type Invocation struct {
	Executable string   `json:"executable"`
	Args       []string `json:"args,omitempty"`
	Dir        string   `json:"dir,omitempty"`
}

// CommandLine renders the invocation for display and logging.
func (inv Invocation) CommandLine() string {
	parts := make([]string, 0, len(inv.Args)+1)
	parts = append(parts, inv.Executable)
	parts = append(parts, inv.Args...)
	return strings.Join(parts, " ")
}

// Clone returns a copy with its own argument slice, so a started run
// cannot observe later edits.
func (inv Invocation) Clone() Invocation {
	cp := inv
	cp.Args = append([]string(nil), inv.Args...)
	return cp
}

// RunResult captures the outcome of one external tool run.
type RunResult struct {
	RunID     string        `json:"run_id"`
	State     RunState      `json:"state"`
	ExitCode  int           `json:"exit_code"`
	Lines     []string      `json:"lines,omitempty"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Success reports whether the process exited cleanly.
func (r *RunResult) Success() bool {
	return r.State == StateCompleted && r.ExitCode == 0
}

// Tail returns the last n output lines joined by newlines.
func (r *RunResult) Tail(n int) string {
	if n <= 0 || len(r.Lines) == 0 {
		return ""
	}
	if len(r.Lines) > n {
		return strings.Join(r.Lines[len(r.Lines)-n:], "\n")
	}
	return strings.Join(r.Lines, "\n")
}

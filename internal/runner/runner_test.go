//go:build !windows

package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/laspilot/laspilot/internal/task"
)

// writeFakeTool drops an executable shell script into dir and returns its path.
func writeFakeTool(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Success(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "fakeinfo", `echo "report line one"; echo "report line two"`)

	r := New(Options{})
	res, err := r.Run(context.Background(), task.Invocation{Executable: exe})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success() {
		t.Fatalf("expected success, got state %s exit %d", res.State, res.ExitCode)
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", res.ExitCode)
	}
	if len(res.Lines) != 2 {
		t.Fatalf("lines: got %d, want 2: %q", len(res.Lines), res.Lines)
	}
	if res.Lines[0] != "report line one" || res.Lines[1] != "report line two" {
		t.Errorf("unexpected lines: %q", res.Lines)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
	if res.Duration <= 0 {
		t.Error("expected a positive duration")
	}
}

func TestRun_ExitCodeMatchesProcess(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "failing", `echo "boom"; exit 3`)

	r := New(Options{})
	res, err := r.Run(context.Background(), task.Invocation{Executable: exe})
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code: got %d, want 3", res.ExitCode)
	}
	if res.State != task.StateFailed {
		t.Errorf("state: got %s, want FAILED", res.State)
	}

	var pf *ProcessFailed
	if !errors.As(err, &pf) {
		t.Fatalf("expected ProcessFailed, got %v", err)
	}
	if pf.ExitCode != 3 {
		t.Errorf("ProcessFailed exit code: got %d, want 3", pf.ExitCode)
	}
	if pf.Result == nil || len(pf.Result.Lines) != 1 || pf.Result.Lines[0] != "boom" {
		t.Errorf("expected captured output on the error, got %+v", pf.Result)
	}
}

func TestRun_MissingExecutable(t *testing.T) {
	r := New(Options{})
	res, err := r.Run(context.Background(), task.Invocation{Executable: "definitely-not-a-real-lastool"})
	if res != nil {
		t.Fatalf("expected no result before launch, got %+v", res)
	}
	var le *LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
	if le.Executable != "definitely-not-a-real-lastool" {
		t.Errorf("executable in error: got %q", le.Executable)
	}
}

func TestRun_MissingWorkingDir(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "tool", `echo hi`)

	r := New(Options{})
	res, err := r.Run(context.Background(), task.Invocation{
		Executable: exe,
		Dir:        filepath.Join(dir, "nope"),
	})
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	var le *LaunchError
	if !errors.As(err, &le) {
		t.Fatalf("expected LaunchError, got %v", err)
	}
}

func TestRun_WorkingDirApplied(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "tool", `pwd`)
	workDir := filepath.Join(dir, "work")
	if err := os.Mkdir(workDir, 0o755); err != nil {
		t.Fatal(err)
	}
	// macOS tempdirs resolve through symlinks
	wantDir, err := filepath.EvalSymlinks(workDir)
	if err != nil {
		t.Fatal(err)
	}

	r := New(Options{})
	res, runErr := r.Run(context.Background(), task.Invocation{Executable: exe, Dir: workDir})
	if runErr != nil {
		t.Fatalf("unexpected error: %v", runErr)
	}
	if len(res.Lines) != 1 {
		t.Fatalf("expected one line, got %q", res.Lines)
	}
	got, err := filepath.EvalSymlinks(res.Lines[0])
	if err != nil {
		t.Fatal(err)
	}
	if got != wantDir {
		t.Errorf("working dir: got %s, want %s", got, wantDir)
	}
}

func TestRun_LineOrderPreserved(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "counter", `i=0
while [ $i -lt 200 ]; do
  echo "line $i"
  i=$((i+1))
done`)

	var mu sync.Mutex
	var heard []string
	r := New(Options{})
	r.SetListener(func(line string) {
		mu.Lock()
		heard = append(heard, line)
		mu.Unlock()
	})

	res, err := r.Run(context.Background(), task.Invocation{Executable: exe})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Lines) != 200 {
		t.Fatalf("captured lines: got %d, want 200", len(res.Lines))
	}
	for i, line := range res.Lines {
		if want := fmt.Sprintf("line %d", i); line != want {
			t.Fatalf("line %d: got %q, want %q", i, line, want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(heard) != len(res.Lines) {
		t.Fatalf("listener heard %d lines, result has %d", len(heard), len(res.Lines))
	}
	for i := range heard {
		if heard[i] != res.Lines[i] {
			t.Fatalf("listener line %d diverges: %q vs %q", i, heard[i], res.Lines[i])
		}
	}
}

func TestRun_StderrRelayed(t *testing.T) {
	// lasinfo writes its whole report to stderr
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "stderrtool", `echo "to stderr" 1>&2`)

	r := New(Options{})
	res, err := r.Run(context.Background(), task.Invocation{Executable: exe})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "to stderr" {
		t.Errorf("expected stderr line relayed, got %q", res.Lines)
	}
}

func TestRun_OversizedLineIsIOError(t *testing.T) {
	// a single line larger than the scanner buffer cannot be relayed
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "bigline", `head -c 2097152 /dev/zero | tr '\0' x; echo`)

	r := New(Options{})
	res, err := r.Run(context.Background(), task.Invocation{Executable: exe})

	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if !errors.Is(err, bufio.ErrTooLong) {
		t.Errorf("expected ErrTooLong underneath, got %v", ioErr.Err)
	}
	if res == nil || res.State != task.StateFailed {
		t.Fatalf("expected FAILED result, got %+v", res)
	}
}

func TestRun_Timeout(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "sleeper", `echo started; sleep 10`)

	r := New(Options{MaxRuntime: 200 * time.Millisecond})
	res, err := r.Run(context.Background(), task.Invocation{Executable: exe})
	if res == nil {
		t.Fatal("expected a partial result")
	}
	if res.State != task.StateFailed {
		t.Errorf("state: got %s, want FAILED", res.State)
	}
	var pf *ProcessFailed
	if !errors.As(err, &pf) {
		t.Fatalf("expected ProcessFailed, got %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "started" {
		t.Errorf("expected output captured before the kill, got %q", res.Lines)
	}
}

func TestRun_IdleKill(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "quiet", `echo one; sleep 10; echo two`)

	r := New(Options{IdleTimeout: 200 * time.Millisecond})
	start := time.Now()
	res, err := r.Run(context.Background(), task.Invocation{Executable: exe})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("idle kill did not fire, run took %s", elapsed)
	}
	if res == nil || res.State != task.StateFailed {
		t.Fatalf("expected FAILED result, got %+v", res)
	}
	var pf *ProcessFailed
	if !errors.As(err, &pf) {
		t.Fatalf("expected ProcessFailed, got %v", err)
	}
}

func TestRun_Cancel(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "longrun", `echo going; sleep 10`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	r := New(Options{})
	res, err := r.Run(ctx, task.Invocation{Executable: exe})
	if err != nil {
		t.Fatalf("cancel is not an error: %v", err)
	}
	if res.State != task.StateCanceled {
		t.Errorf("state: got %s, want CANCELED", res.State)
	}
}

func TestRun_OnStartHook(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "tool", `echo hi`)

	var gotID string
	r := New(Options{OnStart: func(runID string, _ time.Time) { gotID = runID }})
	res, err := r.Run(context.Background(), task.Invocation{Executable: exe})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID == "" || gotID != res.RunID {
		t.Errorf("OnStart run id %q does not match result %q", gotID, res.RunID)
	}
}

func TestRun_ArgsPassedThrough(t *testing.T) {
	dir := t.TempDir()
	exe := writeFakeTool(t, dir, "echoargs", `echo "$@"`)

	args := []string{"-i", "a.las"}
	inv := task.Invocation{Executable: exe, Args: args}

	r := New(Options{})
	res, err := r.Run(context.Background(), inv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "-i a.las" {
		t.Errorf("args not passed through: %q", res.Lines)
	}
}

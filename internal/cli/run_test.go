package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/laspilot/laspilot/internal/runner"
	"github.com/laspilot/laspilot/internal/task"
)

func TestUseTUI(t *testing.T) {
	if !useTUI("full") {
		t.Error("full must force the live view")
	}
	if useTUI("off") {
		t.Error("off must force plain output")
	}
	// auto under the test harness: stdout is not a char device
	if useTUI("auto") != isTerminal() {
		t.Error("auto must follow TTY detection")
	}
}

func TestReport_LaunchErrorIsFatal(t *testing.T) {
	le := &runner.LaunchError{Executable: "lasinfo", Err: os.ErrNotExist}
	err := report(task.Invocation{Executable: "lasinfo"}, nil, le, "off")
	var got *runner.LaunchError
	if !errors.As(err, &got) {
		t.Errorf("expected the LaunchError back, got %v", err)
	}
}

func TestReport_ProcessFailedPropagates(t *testing.T) {
	res := &task.RunResult{State: task.StateFailed, ExitCode: 2}
	pf := &runner.ProcessFailed{Executable: "lasindex", ExitCode: 2, Result: res}
	err := report(task.Invocation{Executable: "lasindex"}, res, pf, "off")
	var got *runner.ProcessFailed
	if !errors.As(err, &got) {
		t.Errorf("expected the ProcessFailed back, got %v", err)
	}
}

func TestReport_CanceledIsNotAnError(t *testing.T) {
	res := &task.RunResult{State: task.StateCanceled}
	if err := report(task.Invocation{Executable: "lasinfo"}, res, nil, "off"); err != nil {
		t.Errorf("canceled run must not fail the command: %v", err)
	}
}

func TestEnvInvocation(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".laspilot.yml")
	content := "default_dir: " + dir + "\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	old := configFile
	configFile = cfgPath
	defer func() { configFile = old }()

	e, err := loadEnv()
	if err != nil {
		t.Fatal(err)
	}
	tool, err := e.tool("lasinfo")
	if err != nil {
		t.Fatal(err)
	}

	inv, err := e.invocation(tool, "tile.las", []string{"compute_density"}, []string{"-otxt"}, "")
	if err != nil {
		t.Fatal(err)
	}
	if inv.Executable != "lasinfo" {
		t.Errorf("executable: %q", inv.Executable)
	}
	want := []string{"-i", "tile.las", "-compute_density", "-otxt"}
	if len(inv.Args) != len(want) {
		t.Fatalf("args: %v, want %v", inv.Args, want)
	}
	for i := range want {
		if inv.Args[i] != want[i] {
			t.Errorf("arg %d: got %q, want %q", i, inv.Args[i], want[i])
		}
	}
	if inv.Dir != dir {
		t.Errorf("dir should fall back to default_dir, got %q", inv.Dir)
	}
}

func TestEnvUnknownTool(t *testing.T) {
	old := configFile
	configFile = filepath.Join(t.TempDir(), "absent.yml")
	defer func() { configFile = old }()

	e, err := loadEnv()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.tool("lasnothing"); err == nil {
		t.Error("expected an error for an unknown tool")
	}
}

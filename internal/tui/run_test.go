package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/laspilot/laspilot/internal/task"
)

func sized(t *testing.T) RunModel {
	t.Helper()
	m := NewRunModel(task.Invocation{Executable: "lasinfo", Args: []string{"-i", "tile.las"}}, nil)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(RunModel)
}

func TestRunModel_ShowsCommandLine(t *testing.T) {
	m := sized(t)
	if !strings.Contains(m.View(), "lasinfo -i tile.las") {
		t.Errorf("view missing command line:\n%s", m.View())
	}
}

func TestRunModel_AppendsLines(t *testing.T) {
	m := sized(t)
	next, _ := m.Update(LineMsg("lasinfo report for tile.las"))
	m = next.(RunModel)
	next, _ = m.Update(LineMsg("number of points: 1234"))
	m = next.(RunModel)

	view := m.View()
	if !strings.Contains(view, "lasinfo report for tile.las") {
		t.Error("first line not rendered")
	}
	if !strings.Contains(view, "number of points: 1234") {
		t.Error("second line not rendered")
	}
	if !strings.Contains(view, "2 lines") {
		t.Errorf("footer missing line count:\n%s", view)
	}
}

func TestRunModel_DoneQuits(t *testing.T) {
	m := sized(t)
	res := &task.RunResult{RunID: "r1", State: task.StateCompleted}
	next, cmd := m.Update(DoneMsg{Result: res})
	m = next.(RunModel)

	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("expected tea.Quit, got %T", msg)
	}

	gotRes, err := m.Result()
	if err != nil || gotRes != res {
		t.Errorf("result not stored: %v, %v", gotRes, err)
	}
	if !strings.Contains(m.View(), "done") {
		t.Errorf("view missing done status:\n%s", m.View())
	}
}

func TestRunModel_CancelKeyFiresOnce(t *testing.T) {
	calls := 0
	m := NewRunModel(task.Invocation{Executable: "lasground"}, func() { calls++ })
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(RunModel)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(RunModel)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(RunModel)

	if calls != 1 {
		t.Errorf("cancel fired %d times, want 1", calls)
	}
	if !strings.Contains(m.View(), "canceling") {
		t.Errorf("view missing canceling status:\n%s", m.View())
	}
}

func TestRunModel_FailedView(t *testing.T) {
	m := sized(t)
	res := &task.RunResult{State: task.StateFailed, ExitCode: 2, Error: "exited with code 2"}
	next, _ := m.Update(DoneMsg{Result: res})
	m = next.(RunModel)

	if !strings.Contains(m.View(), "failed") {
		t.Errorf("view missing failed status:\n%s", m.View())
	}
}

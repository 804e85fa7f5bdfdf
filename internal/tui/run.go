// Package tui renders a live view of a running tool: spinner, elapsed
// time, and a scrolling log of relayed output lines.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/laspilot/laspilot/internal/task"
)

// LineMsg carries one relayed output line from the runner goroutine.
// Delivered via Program.Send, which is safe from any goroutine.
type LineMsg string

// DoneMsg carries the run outcome from the runner goroutine.
type DoneMsg struct {
	Result *task.RunResult
	Err    error
}

// RunModel is the bubbletea model for a single tool run.
type RunModel struct {
	inv      task.Invocation
	cancelFn func()

	spinner  spinner.Model
	viewport viewport.Model
	lines    []string
	follow   bool
	ready    bool

	start     time.Time
	done      bool
	canceling bool
	result    *task.RunResult
	err       error

	width  int
	height int
}

// NewRunModel creates the live view for one invocation. cancelFn is called
// when the user aborts the run.
func NewRunModel(inv task.Invocation, cancelFn func()) RunModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runStyle
	return RunModel{
		inv:      inv,
		cancelFn: cancelFn,
		spinner:  sp,
		follow:   true,
		start:    time.Now(),
	}
}

// Result returns the final run outcome once the program has finished.
func (m RunModel) Result() (*task.RunResult, error) {
	return m.result, m.err
}

// Init implements tea.Model.
func (m RunModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.done {
				return m, tea.Quit
			}
			// first press kills the process group; completion arrives
			// as a DoneMsg like any other run
			if !m.canceling && m.cancelFn != nil {
				m.canceling = true
				m.cancelFn()
			}
			return m, nil
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		case "g":
			m.follow = false
			m.viewport.GotoTop()
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 4 // header + blank + footer
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case LineMsg:
		m.lines = append(m.lines, string(msg))
		if m.ready {
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			if m.follow {
				m.viewport.GotoBottom()
			}
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m RunModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m RunModel) renderHeader() string {
	elapsed := time.Since(m.start).Round(time.Second)

	status := m.spinner.View() + " " + runStyle.Render("running")
	switch {
	case m.canceling && !m.done:
		status = warnStyle.Render("⏹ canceling")
	case m.done && m.result != nil && m.result.Success():
		status = doneStyle.Render("✓ done")
	case m.done && m.result != nil && m.result.State == task.StateCanceled:
		status = warnStyle.Render("⏹ canceled")
	case m.done:
		status = failedStyle.Render("✗ failed")
	}
	if m.done && m.result != nil {
		elapsed = m.result.Duration.Round(time.Second)
	}

	return fmt.Sprintf("%s  %s  %s",
		headerStyle.Render(m.inv.CommandLine()),
		status,
		dimStyle.Render(elapsed.String()))
}

func (m RunModel) renderFooter() string {
	follow := "follow"
	if !m.follow {
		follow = fmt.Sprintf("%3.0f%%", m.viewport.ScrollPercent()*100)
	}
	return helpStyle.Render(fmt.Sprintf("%d lines · %s · q cancel · f follow · j/k scroll", len(m.lines), follow))
}

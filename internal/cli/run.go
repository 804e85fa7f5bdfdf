package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/laspilot/laspilot/internal/runner"
	"github.com/laspilot/laspilot/internal/task"
	"github.com/laspilot/laspilot/internal/tui"
)

func newRunCmd() *cobra.Command {
	var (
		input       string
		dir         string
		params      []string
		extra       []string
		maxRuntime  time.Duration
		idleTimeout time.Duration
		tuiMode     string
	)

	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Run one LAStools executable on an input file",
		Example: `  laspilot run lasinfo -i tile.las -p compute_density
  laspilot run lasindex -i tile.laz -p tile_size=10
  laspilot run las2las -i tile.las -p target_epsg=25832 -a -o -a out.laz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			tool, err := e.tool(args[0])
			if err != nil {
				return err
			}
			inv, err := e.invocation(tool, input, params, extra, dir)
			if err != nil {
				return err
			}
			opts := e.runnerOptions(maxRuntime, idleTimeout,
				cmd.Flags().Changed("max-runtime"), cmd.Flags().Changed("idle-timeout"))
			return runTool(e, tool.Name, inv, opts, tuiMode)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "input LAS/LAZ file (required)")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "tool parameter as key or key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&extra, "arg", "a", nil, "extra argument passed through verbatim (repeatable)")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the tool")
	cmd.Flags().DurationVar(&maxRuntime, "max-runtime", 0, "kill the tool after this duration (0 = no limit)")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "kill the tool after no output for this duration (0 = no limit)")
	cmd.Flags().StringVar(&tuiMode, "tui", "auto", "display mode: full (live view), off (plain lines), auto (detect TTY)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runTool(e *env, toolName string, inv task.Invocation, opts runner.Options, tuiMode string) error {
	store := e.openHistory()
	if store != nil {
		defer store.Close()
	}
	opts.OnStart = recordStart(store, toolName, inv)

	r := runner.New(opts)

	var res *task.RunResult
	var runErr error
	if useTUI(tuiMode) {
		res, runErr = runWithTUI(r, inv)
	} else {
		res, runErr = runPlain(r, inv)
	}

	recordFinish(store, e.settings.HistoryKeep(), res)
	return report(inv, res, runErr, tuiMode)
}

// runPlain executes the invocation printing each line as it arrives.
// SIGINT cancels the run; the process group is killed.
func runPlain(r *runner.Runner, inv task.Invocation) (*task.RunResult, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted — stopping tool...")
		cancel()
	}()

	r.SetListener(func(line string) {
		fmt.Println(line)
	})
	return r.Run(ctx, inv)
}

// runWithTUI executes the invocation behind the live view. The runner goes
// on its own goroutine; lines and completion reach the bubbletea loop via
// Program.Send.
func runWithTUI(r *runner.Runner, inv task.Invocation) (*task.RunResult, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(tui.NewRunModel(inv, cancel))
	r.SetListener(func(line string) {
		p.Send(tui.LineMsg(line))
	})

	go func() {
		res, err := r.Run(ctx, inv)
		p.Send(tui.DoneMsg{Result: res, Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("display: %w", err)
	}
	return final.(tui.RunModel).Result()
}

// report prints the outcome and maps run errors to the command exit status.
func report(inv task.Invocation, res *task.RunResult, runErr error, tuiMode string) error {
	var launchErr *runner.LaunchError
	if errors.As(runErr, &launchErr) {
		return launchErr
	}

	if res != nil && useTUI(tuiMode) && !res.Success() {
		// the live view is gone; repeat the tail so the failure is visible
		if tail := res.Tail(15); tail != "" {
			fmt.Fprintln(os.Stderr, tail)
		}
	}

	switch {
	case runErr != nil:
		return runErr
	case res != nil && res.State == task.StateCanceled:
		fmt.Fprintf(os.Stderr, "canceled: %s\n", inv.CommandLine())
		return nil
	case res != nil:
		fmt.Fprintf(os.Stderr, "✓ %s (%s, %d lines)\n",
			inv.CommandLine(), res.Duration.Round(time.Millisecond), len(res.Lines))
		return nil
	}
	return runErr
}

func useTUI(mode string) bool {
	switch mode {
	case "full":
		return true
	case "off":
		return false
	default: // auto
		return isTerminal()
	}
}

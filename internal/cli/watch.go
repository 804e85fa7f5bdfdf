package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/laspilot/laspilot/internal/runner"
	"github.com/laspilot/laspilot/internal/task"
	"github.com/laspilot/laspilot/internal/watch"
)

func newWatchCmd() *cobra.Command {
	var (
		params      []string
		extra       []string
		workDir     string
		pollMode    bool
		debounce    time.Duration
		maxRuntime  time.Duration
		idleTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir> <tool>",
		Short: "Run a tool on every new LAS/LAZ file that appears in a directory",
		Example: `  laspilot watch incoming/ lasindex
  laspilot watch incoming/ lasinfo -p compute_density --poll`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			tool, err := e.tool(args[1])
			if err != nil {
				return err
			}

			store := e.openHistory()
			if store != nil {
				defer store.Close()
			}
			opts := e.runnerOptions(maxRuntime, idleTimeout,
				cmd.Flags().Changed("max-runtime"), cmd.Flags().Changed("idle-timeout"))

			w, err := watch.New(watch.Config{
				Dir:      args[0],
				PollMode: pollMode,
				Debounce: debounce,
				Process: func(ctx context.Context, path string) {
					inv, err := e.invocation(tool, path, params, extra, workDir)
					if err != nil {
						fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", path, err)
						return
					}
					o := opts
					o.OnStart = recordStart(store, tool.Name, inv)
					fmt.Printf("  → %s\n", path)
					res, runErr := runner.New(o).Run(ctx, inv)
					recordFinish(store, e.settings.HistoryKeep(), res)
					switch {
					case runErr != nil:
						fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", path, runErr)
					case res.State == task.StateCanceled:
						fmt.Printf("  ⊘ %s canceled\n", path)
					default:
						fmt.Printf("  ✓ %s (%s, %d lines)\n", path, res.Duration.Round(time.Millisecond), len(res.Lines))
					}
				},
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			defer signal.Stop(sigCh)
			go func() {
				<-sigCh
				cancel()
			}()

			fmt.Printf("watching %s — new point clouds go to %s (ctrl+c to stop)\n", args[0], tool.Name)
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "tool parameter as key or key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&extra, "arg", "a", nil, "extra argument passed through verbatim (repeatable)")
	cmd.Flags().StringVar(&workDir, "dir", "", "working directory for the tools")
	cmd.Flags().BoolVar(&pollMode, "poll", false, "use polling instead of fsnotify")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before processing a new file")
	cmd.Flags().DurationVar(&maxRuntime, "max-runtime", 0, "per-file timeout (0 = no limit)")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "per-file idle kill (0 = no limit)")

	return cmd
}

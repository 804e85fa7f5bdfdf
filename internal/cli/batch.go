package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/laspilot/laspilot/internal/lastools"
	"github.com/laspilot/laspilot/internal/runner"
	"github.com/laspilot/laspilot/internal/task"
)

func newBatchCmd() *cobra.Command {
	var (
		dir         string
		params      []string
		extra       []string
		workers     int
		failFast    bool
		maxRuntime  time.Duration
		idleTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "batch <tool> <glob>",
		Short: "Run one tool over every file matching a glob",
		Example: `  laspilot batch lasindex 'tiles/*.laz'
  laspilot batch lasinfo 'tiles/*.las' --workers 4 -p no_check`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			tool, err := e.tool(args[0])
			if err != nil {
				return err
			}

			files, err := filepath.Glob(args[1])
			if err != nil {
				return fmt.Errorf("bad glob %q: %w", args[1], err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no files match %q", args[1])
			}

			if !cmd.Flags().Changed("workers") && e.settings.Workers > 0 {
				workers = e.settings.Workers
			}
			if !cmd.Flags().Changed("fail-fast") && e.settings.FailFast {
				failFast = e.settings.FailFast
			}
			opts := e.runnerOptions(maxRuntime, idleTimeout,
				cmd.Flags().Changed("max-runtime"), cmd.Flags().Changed("idle-timeout"))

			return runBatch(e, tool, files, params, extra, dir, workers, failFast, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "tool parameter as key or key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&extra, "arg", "a", nil, "extra argument passed through verbatim (repeatable)")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the tools")
	cmd.Flags().IntVar(&workers, "workers", 1, "parallel tool processes")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop dispatching after the first failure")
	cmd.Flags().DurationVar(&maxRuntime, "max-runtime", 0, "per-file timeout (0 = no limit)")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "per-file idle kill (0 = no limit)")

	return cmd
}

func runBatch(e *env, tool *lastools.Tool, files, params, extra []string, dir string, workers int, failFast bool, opts runner.Options) error {
	store := e.openHistory()
	if store != nil {
		defer store.Close()
	}

	batch := task.NewBatch(task.BatchConfig{
		Workers:  workers,
		FailFast: failFast,
		ExecFn: func(ctx context.Context, inv task.Invocation) (*task.RunResult, error) {
			o := opts
			o.OnStart = recordStart(store, tool.Name, inv)
			res, err := runner.New(o).Run(ctx, inv)
			recordFinish(store, 0, res)
			return res, err
		},
		OnUpdate: printBatchUpdate,
	})

	for _, file := range files {
		inv, err := e.invocation(tool, file, params, extra, dir)
		if err != nil {
			return err
		}
		batch.Add(file, inv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted — waiting for running tools to finish...")
		cancel()
	}()

	slog.Info("starting batch", "tool", tool.Name, "files", len(files), "workers", workers)
	fmt.Printf("%s over %d files, %d workers\n", tool.Name, len(files), workers)

	start := time.Now()
	batch.Run(ctx)

	if store != nil {
		if keep := e.settings.HistoryKeep(); keep > 0 {
			if _, err := store.Prune(keep); err != nil {
				slog.Warn("prune history", "error", err)
			}
		}
	}

	failed, skipped := batch.Failed(), batch.Skipped()
	fmt.Printf("batch finished in %s: %d ok, %d failed, %d skipped\n",
		time.Since(start).Round(time.Second), batch.Len()-failed-skipped, failed, skipped)
	if failed > 0 {
		return fmt.Errorf("%d runs failed", failed)
	}
	return nil
}

func printBatchUpdate(item *task.BatchItem) {
	switch item.State {
	case task.StateRunning:
		fmt.Printf("  → %s\n", item.Input)
	case task.StateCompleted:
		fmt.Printf("  ✓ %s (%s)\n", item.Input, item.Result.Duration.Round(time.Millisecond))
	case task.StateFailed:
		reason := "failed"
		if item.Err != nil {
			reason = item.Err.Error()
		} else if item.Result != nil && item.Result.Error != "" {
			reason = item.Result.Error
		}
		fmt.Printf("  ✗ %s: %s\n", item.Input, reason)
	case task.StateCanceled:
		fmt.Printf("  ⊘ %s skipped\n", item.Input)
	}
}

package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/laspilot/laspilot/internal/history"
	"github.com/laspilot/laspilot/internal/task"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent runs, or one run's captured output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			if !e.settings.HistoryEnabled() {
				return fmt.Errorf("history is disabled in %s", configFile)
			}
			store, err := history.Open(e.settings.HistoryPath())
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			if len(args) == 1 {
				return showRun(store, args[0])
			}
			return listRuns(store, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")

	return cmd
}

func listRuns(store *history.Store, limit int) error {
	records, err := store.List(limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	fmt.Printf("  %-8s %-12s %-10s %-5s %-9s %-6s %s\n", "ID", "TOOL", "STATE", "EXIT", "DURATION", "LINES", "STARTED")
	for _, rec := range records {
		fmt.Printf("  %-8s %-12s %-10s %-5s %-9s %-6d %s\n",
			shortID(rec.ID), rec.Tool, rec.State, exitCol(rec), durationCol(rec), rec.LineCount, startedCol(rec))
	}
	return nil
}

func showRun(store *history.Store, id string) error {
	rec, err := store.Get(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no run with id %q", id)
		}
		return fmt.Errorf("load run: %w", err)
	}

	fmt.Printf("%s %s\n", rec.Tool, strings.Join(rec.Args, " "))
	fmt.Printf("state %s, exit %s, %s, %d lines\n", rec.State, exitCol(rec), durationCol(rec), rec.LineCount)
	if rec.Error != "" {
		fmt.Printf("error: %s\n", rec.Error)
	}
	if rec.OutputTail != "" {
		fmt.Printf("\n%s\n", rec.OutputTail)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func exitCol(rec *history.Record) string {
	if rec.ExitCode == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *rec.ExitCode)
}

func durationCol(rec *history.Record) string {
	if rec.StartedAt == nil || rec.EndedAt == nil {
		if rec.State == task.StateRunning.String() {
			return "running"
		}
		return "-"
	}
	return rec.EndedAt.Sub(*rec.StartedAt).Round(time.Millisecond).String()
}

func startedCol(rec *history.Record) string {
	if rec.StartedAt == nil {
		return "-"
	}
	return rec.StartedAt.Format("2006-01-02 15:04:05")
}

package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/laspilot/laspilot/internal/config"
	"github.com/laspilot/laspilot/internal/history"
	"github.com/laspilot/laspilot/internal/lastools"
	"github.com/laspilot/laspilot/internal/runner"
	"github.com/laspilot/laspilot/internal/task"
)

// env bundles what every command needs: settings and the tool catalog.
type env struct {
	settings *config.Settings
	catalog  *lastools.Catalog
}

func loadEnv() (*env, error) {
	cfg, err := config.LoadSettings(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	catalog := lastools.DefaultCatalog()
	if cfg.ParamsFile != "" {
		if err := catalog.LoadParamsFile(cfg.ParamsFile); err != nil {
			return nil, err
		}
	}

	return &env{settings: cfg, catalog: catalog}, nil
}

// tool resolves a catalog entry or errors with the known names.
func (e *env) tool(name string) (*lastools.Tool, error) {
	t, ok := e.catalog.Tool(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q (known: %s)", name, strings.Join(e.catalog.Names(), ", "))
	}
	return t, nil
}

// invocation builds the full invocation for a tool run.
func (e *env) invocation(t *lastools.Tool, input string, params, extra []string, dir string) (task.Invocation, error) {
	values, err := lastools.ParseKeyValues(params)
	if err != nil {
		return task.Invocation{}, err
	}
	args, err := t.BuildArgs(input, values, extra)
	if err != nil {
		return task.Invocation{}, err
	}
	if dir == "" {
		dir = e.settings.DefaultDir
	}
	return task.Invocation{
		Executable: lastools.Resolve(t.Name, e.settings.LAStoolsDir),
		Args:       args,
		Dir:        dir,
	}, nil
}

// openHistory opens the run history store. Failure is logged, not fatal:
// a broken history database must never block a run.
func (e *env) openHistory() *history.Store {
	if !e.settings.HistoryEnabled() {
		return nil
	}
	store, err := history.Open(e.settings.HistoryPath())
	if err != nil {
		slog.Warn("history disabled for this run", "error", err)
		return nil
	}
	return store
}

// runnerOptions applies settings defaults under explicit flag values.
func (e *env) runnerOptions(maxRuntime, idleTimeout time.Duration, maxSet, idleSet bool) runner.Options {
	opts := runner.Options{MaxRuntime: maxRuntime, IdleTimeout: idleTimeout}
	if !maxSet && e.settings.MaxRuntime > 0 {
		opts.MaxRuntime = e.settings.MaxRuntime
	}
	if !idleSet && e.settings.IdleTimeout > 0 {
		opts.IdleTimeout = e.settings.IdleTimeout
	}
	return opts
}

// recordStart and recordFinish tolerate a nil store.
func recordStart(store *history.Store, tool string, inv task.Invocation) func(string, time.Time) {
	return func(runID string, startedAt time.Time) {
		if store == nil {
			return
		}
		if err := store.Begin(runID, tool, inv.Args, inv.Dir, startedAt); err != nil {
			slog.Warn("record run start", "error", err)
		}
	}
}

func recordFinish(store *history.Store, keep int, res *task.RunResult) {
	if store == nil || res == nil {
		return
	}
	if err := store.Finish(res); err != nil {
		slog.Warn("record run result", "error", err)
	}
	if keep > 0 {
		if _, err := store.Prune(keep); err != nil {
			slog.Warn("prune history", "error", err)
		}
	}
}

// Package watch monitors a directory for newly arrived LAS/LAZ files and
// hands each one to a processing callback.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/laspilot/laspilot/internal/lastools"
)

// debounceDefault is the quiet period after the last write event before a
// file is considered fully copied in. Point clouds are large and arrive
// over many write events.
const debounceDefault = 2 * time.Second

// pollDefault is the polling interval when fsnotify is unavailable.
const pollDefault = 5 * time.Second

// ProcessFunc handles one newly arrived file.
type ProcessFunc func(ctx context.Context, path string)

// Config holds watcher configuration.
type Config struct {
	Dir       string        // directory to watch
	PollMode  bool          // use polling instead of fsnotify
	Debounce  time.Duration // quiet period before processing; 0 = default
	PollEvery time.Duration // polling interval; 0 = default
	Process   ProcessFunc
}

// Watcher invokes the processing callback for each new point-cloud file.
type Watcher struct {
	cfg Config
}

// New creates a watcher with validated configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path %s is not a directory", cfg.Dir)
	}
	if cfg.Process == nil {
		return nil, fmt.Errorf("process function is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = debounceDefault
	}
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = pollDefault
	}
	return &Watcher{cfg: cfg}, nil
}

// Run blocks until ctx is canceled. Files already present when Run starts
// are not processed; only new arrivals are.
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.PollMode {
		return w.runPollWatcher(ctx)
	}
	return w.runFSWatcher(ctx)
}

// runFSWatcher watches the directory using fsnotify. Debounced files are
// fed to a single dispatch goroutine, so tools run one at a time even when
// several point clouds land together.
func (w *Watcher) runFSWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch dir: %w", err)
	}

	slog.Info("watching for point clouds", "mode", "fsnotify", "dir", w.cfg.Dir)

	ready := make(chan string, 64)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case path := <-ready:
				w.cfg.Process(ctx, path)
			}
		}
	}()

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			wg.Wait()
			slog.Info("watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				wg.Wait()
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !lastools.IsPointCloudFile(event.Name) {
				continue
			}

			// every write resets the debounce so half-copied files wait
			path := event.Name
			mu.Lock()
			if t, exists := pending[path]; exists {
				t.Stop()
			}
			pending[path] = time.AfterFunc(w.cfg.Debounce, func() {
				mu.Lock()
				delete(pending, path)
				mu.Unlock()
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				wg.Wait()
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// runPollWatcher watches the directory using polling.
func (w *Watcher) runPollWatcher(ctx context.Context) error {
	slog.Info("watching for point clouds", "mode", "poll", "dir", w.cfg.Dir, "interval", w.cfg.PollEvery)

	seen := make(map[string]bool)
	if entries, err := os.ReadDir(w.cfg.Dir); err == nil {
		for _, e := range entries {
			seen[e.Name()] = true
		}
	}

	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher stopped")
			return nil
		case <-ticker.C:
			entries, err := os.ReadDir(w.cfg.Dir)
			if err != nil {
				slog.Error("read watch dir", "error", err)
				continue
			}
			for _, e := range entries {
				if e.IsDir() || seen[e.Name()] {
					continue
				}
				seen[e.Name()] = true
				if !lastools.IsPointCloudFile(e.Name()) {
					continue
				}
				w.cfg.Process(ctx, filepath.Join(w.cfg.Dir, e.Name()))
			}
		}
	}
}

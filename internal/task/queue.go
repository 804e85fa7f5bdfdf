package task

import (
	"context"
	"sync"
)

// ExecFn runs one invocation and returns its result. The error carries
// launch or process failure detail; the result may be nil when nothing
// was spawned.
type ExecFn func(ctx context.Context, inv Invocation) (*RunResult, error)

// BatchConfig holds batch execution parameters.
type BatchConfig struct {
	Workers  int
	FailFast bool
	ExecFn   ExecFn
	OnUpdate func(item *BatchItem) // called on state changes with a copy
}

// BatchItem is one input file's job within a batch.
type BatchItem struct {
	Input      string
	Invocation Invocation
	State      RunState
	Result     *RunResult
	Err        error
}

// Batch runs the same tool over many input files with a bounded worker
// pool. Items are independent; order of completion is not guaranteed,
// but items are dispatched in the order they were added.
type Batch struct {
	cfg   BatchConfig
	items []*BatchItem

	mu      sync.Mutex
	stopped bool
}

// NewBatch creates an empty batch.
func NewBatch(cfg BatchConfig) *Batch {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Batch{cfg: cfg}
}

// Add queues one input file with its invocation.
func (b *Batch) Add(input string, inv Invocation) {
	b.items = append(b.items, &BatchItem{
		Input:      input,
		Invocation: inv,
		State:      StatePending,
	})
}

// Len returns the number of queued items.
func (b *Batch) Len() int { return len(b.items) }

// Run executes all items and blocks until every worker has drained.
// With FailFast set, items not yet dispatched when a failure occurs are
// marked CANCELED.
func (b *Batch) Run(ctx context.Context) []*BatchItem {
	work := make(chan *BatchItem)

	var wg sync.WaitGroup
	for i := 0; i < b.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				b.execute(ctx, item)
			}
		}()
	}

	for _, item := range b.items {
		if b.skip(ctx) {
			b.cancelItem(item)
			continue
		}
		work <- item
	}
	close(work)
	wg.Wait()

	return b.items
}

// Failed returns the count of items whose run failed.
func (b *Batch) Failed() int {
	return b.count(StateFailed)
}

// Skipped returns the count of items canceled before dispatch, either by
// fail-fast or by context cancellation.
func (b *Batch) Skipped() int {
	return b.count(StateCanceled)
}

func (b *Batch) count(state RunState) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, item := range b.items {
		if item.State == state {
			n++
		}
	}
	return n
}

func (b *Batch) skip(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}

func (b *Batch) cancelItem(item *BatchItem) {
	b.mu.Lock()
	item.State = StateCanceled
	b.mu.Unlock()
	b.notify(item)
}

func (b *Batch) execute(ctx context.Context, item *BatchItem) {
	b.mu.Lock()
	item.State = StateRunning
	b.mu.Unlock()
	b.notify(item)

	res, err := b.cfg.ExecFn(ctx, item.Invocation)

	b.mu.Lock()
	item.Result = res
	item.Err = err
	switch {
	case res != nil:
		item.State = res.State
	case err != nil:
		item.State = StateFailed
	default:
		item.State = StateCompleted
	}
	failed := item.State == StateFailed
	if failed && b.cfg.FailFast {
		b.stopped = true
	}
	b.mu.Unlock()
	b.notify(item)
}

func (b *Batch) notify(item *BatchItem) {
	if b.cfg.OnUpdate == nil {
		return
	}
	b.mu.Lock()
	cpy := *item
	b.mu.Unlock()
	b.cfg.OnUpdate(&cpy)
}

package runner

import (
	"io"
	"sync"
	"time"
)

// idleTimeoutReader wraps the tool's output pipe and fires a cancellation
// callback when no bytes arrive for the configured duration. A LAStools
// binary stuck on a bad tile or an unreachable network drive goes silent;
// silence past the limit kills the run. Any Read with n > 0 resets the
// clock.
type idleTimeoutReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
	cancel  func()
	idled   bool
	mu      sync.Mutex
}

// newIdleTimeoutReader wraps r with idle detection over the tool's output.
// A timeout of 0 disables it and the reader passes through untouched.
func newIdleTimeoutReader(r io.Reader, timeout time.Duration, cancel func()) *idleTimeoutReader {
	if timeout <= 0 {
		return &idleTimeoutReader{r: r, timeout: 0}
	}
	itr := &idleTimeoutReader{
		r:       r,
		timeout: timeout,
		cancel:  cancel,
	}
	itr.timer = time.AfterFunc(timeout, itr.onTimeout)
	return itr
}

func (itr *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := itr.r.Read(p)
	if n > 0 && itr.timer != nil {
		itr.timer.Reset(itr.timeout)
	}
	return n, err
}

func (itr *idleTimeoutReader) onTimeout() {
	itr.mu.Lock()
	itr.idled = true
	itr.mu.Unlock()
	if itr.cancel != nil {
		itr.cancel()
	}
}

// Idled reports whether the run was killed for producing no output.
func (itr *idleTimeoutReader) Idled() bool {
	itr.mu.Lock()
	defer itr.mu.Unlock()
	return itr.idled
}

// Stop stops the idle timer once the output stream is drained.
func (itr *idleTimeoutReader) Stop() {
	if itr.timer != nil {
		itr.timer.Stop()
	}
}

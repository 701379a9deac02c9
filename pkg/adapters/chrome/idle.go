package chrome

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

// idleTracker detects network quiescence: at most maxInflight pending
// requests for a continuous quiet period.
type idleTracker struct {
	maxInflight int
	quiet       time.Duration

	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	armed    bool
	timer    *time.Timer
	gen      int

	once sync.Once
	idle chan struct{}
}

func newIdleTracker(maxInflight int, quiet time.Duration) *idleTracker {
	return &idleTracker{
		maxInflight: maxInflight,
		quiet:       quiet,
		inflight:    make(map[network.RequestID]struct{}),
		idle:        make(chan struct{}),
	}
}

// handle is a chromedp target listener.
func (t *idleTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.started(e.RequestID)
	case *network.EventLoadingFinished:
		t.finished(e.RequestID)
	case *network.EventLoadingFailed:
		t.finished(e.RequestID)
	}
}

func (t *idleTracker) started(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.evaluateLocked()
}

func (t *idleTracker) finished(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.evaluateLocked()
}

// wait arms the detector and blocks until the network settles or ctx ends.
// Requests seen before wait still count.
func (t *idleTracker) wait(ctx context.Context) error {
	t.mu.Lock()
	t.armed = true
	t.evaluateLocked()
	t.mu.Unlock()

	select {
	case <-t.idle:
		return nil
	case <-ctx.Done():
		t.mu.Lock()
		pending := len(t.inflight)
		t.mu.Unlock()
		return fmt.Errorf("network did not settle (%d requests pending): %w", pending, ctx.Err())
	}
}

func (t *idleTracker) evaluateLocked() {
	if !t.armed {
		return
	}
	if len(t.inflight) <= t.maxInflight {
		if t.timer == nil {
			gen := t.gen
			t.timer = time.AfterFunc(t.quiet, func() { t.fire(gen) })
		}
		return
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
		t.gen++
	}
}

func (t *idleTracker) fire(gen int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || len(t.inflight) > t.maxInflight {
		return
	}
	t.once.Do(func() { close(t.idle) })
}

package playback

import (
	"context"
	"sync"
	"time"
)

// Ticker is a cancelable repeating timer. At most one loop runs at a time.
type Ticker struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start runs fn every interval until fn returns false, ctx is cancelled or
// Stop is called. Starting a running ticker is a no-op and returns false.
// fn must not call Stop.
func (t *Ticker) Start(ctx context.Context, interval time.Duration, fn func() bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runningLocked() {
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go func() {
		defer close(done)
		defer cancel()

		tk := time.NewTicker(interval)
		defer tk.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-tk.C:
				if !fn() {
					return
				}
			}
		}
	}()
	return true
}

// Stop cancels the loop and waits for it to exit. It is safe to call on a
// stopped ticker.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runningLocked()
}

func (t *Ticker) runningLocked() bool {
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

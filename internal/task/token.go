package task

import "sync/atomic"

// Token is the cooperative cancellation signal for one run. The controlling
// goroutine is its sole writer; the executor reads it before each unit, so
// cancellation latency is bounded by one in-flight unit.
type Token struct {
	cancelled atomic.Bool
}

func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

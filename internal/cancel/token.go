// Package cancel provides the cooperative cancellation token shared by
// every long-running analytical operation: a process-wide atomic
// boolean, polled at the top of every outer loop (per relation, per
// way, per segment, per waypoint), never propagated via panics or
// goroutine teardown.
package cancel

import (
	"sync/atomic"

	"github.com/alpineroute/ski-analyzer/internal/skierr"
)

// Token is a cooperative cancellation flag. The zero value is usable
// and starts un-cancelled. It is safe to share by reference across
// goroutines, but the analytical core itself never spawns any: a Token
// is polled synchronously by the thread that owns it.
type Token struct {
	cancelled atomic.Bool
}

// New returns a fresh, un-cancelled Token.
func New() *Token {
	return &Token{}
}

// Cancel marks the token as cancelled. Idempotent.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.cancelled.Store(true)
}

// IsCancelled reports whether Cancel has been called. A nil Token is
// never cancelled, so callers may pass nil to mean "no cancellation
// requested" without a branch at every call site.
func (t *Token) IsCancelled() bool {
	if t == nil {
		return false
	}
	return t.cancelled.Load()
}

// Check returns a Cancelled *skierr.Error if the token has been
// cancelled, nil otherwise. Call this at the head of every loop that
// bounds runtime.
func (t *Token) Check() error {
	if t.IsCancelled() {
		return skierr.New(skierr.Cancelled, "cancelled")
	}
	return nil
}

// internal/upstream/throttle.go
package upstream

import (
	"context"
	"sync"
	"time"
)

// Clock is the time source used by the throttle.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Throttle enforces a minimum quiet gap on one link: the next request
// starts no earlier than interval after the previous one finished.
type Throttle struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	last     time.Time
}

// NewThrottle returns a throttle using the wall clock when clock is nil.
func NewThrottle(interval time.Duration, clock Clock) *Throttle {
	if clock == nil {
		clock = realClock{}
	}
	return &Throttle{clock: clock, interval: interval}
}

// Wait blocks until interval has elapsed since the previous request,
// then marks now as the latest request start. Done moves the mark to the
// completion time once the request returns.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() && t.interval > 0 {
		if d := t.interval - t.clock.Now().Sub(t.last); d > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.clock.After(d):
			}
		}
	}

	t.last = t.clock.Now()
	return nil
}

// Done marks the end of the request started by the last Wait.
func (t *Throttle) Done() {
	t.mu.Lock()
	t.last = t.clock.Now()
	t.mu.Unlock()
}

// Interval returns the configured minimum spacing.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

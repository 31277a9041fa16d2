// internal/status/tracker.go
package status

import (
	"errors"
	"sync"
	"time"
)

// Tracker owns the health state of one upstream link.
// Observe is called after every request, Tick once per second.
type Tracker struct {
	mu        sync.Mutex
	snap      Snapshot
	staleWait time.Duration
	onChange  func(Snapshot)
}

// NewTracker creates a tracker in HealthUnknown.
// staleWait <= 0 disables the stale transition.
// onChange, if set, is called with the new snapshot whenever it changes.
func NewTracker(staleWait time.Duration, onChange func(Snapshot)) *Tracker {
	return &Tracker{
		snap:      Snapshot{Health: HealthUnknown},
		staleWait: staleWait,
		onChange:  onChange,
	}
}

// Observe records the outcome of one upstream request.
func (t *Tracker) Observe(err error, at time.Time) {
	t.mu.Lock()
	prev := t.snap

	if err == nil {
		// Recovery / OK
		t.snap.Health = HealthOK
		t.snap.LastErrorCode = 0
		t.snap.SecondsInError = 0
		t.snap.LastSuccess = at
	} else {
		t.snap.Health = HealthError
		t.snap.LastErrorCode = ErrorCode(err)
		// NOTE: seconds_in_error increments on the 1Hz tick only.
	}

	cur := t.snap
	t.mu.Unlock()

	t.notify(prev, cur)
}

// Tick advances seconds_in_error while in error or stale and applies the stale window.
func (t *Tracker) Tick(now time.Time) {
	t.mu.Lock()
	prev := t.snap

	if t.snap.Health == HealthOK && t.staleWait > 0 && now.Sub(t.snap.LastSuccess) > t.staleWait {
		t.snap.Health = HealthStale
	}

	unhealthy := t.snap.Health == HealthError || t.snap.Health == HealthStale
	if unhealthy && t.snap.SecondsInError < MaxSecondsInError {
		t.snap.SecondsInError++
	}

	cur := t.snap
	t.mu.Unlock()

	t.notify(prev, cur)
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// HasSucceeded reports whether the link ever produced data.
func (t *Tracker) HasSucceeded() bool {
	return !t.Snapshot().LastSuccess.IsZero()
}

func (t *Tracker) notify(prev, cur Snapshot) {
	if t.onChange != nil && prev != cur {
		t.onChange(cur)
	}
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns CodeGeneric.
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coderA interface{ Code() uint16 }
	type coderB interface{ ErrorCode() uint16 }
	type coderC interface{ ModbusCode() uint16 }

	var a coderA
	if errors.As(err, &a) {
		return a.Code()
	}
	var b coderB
	if errors.As(err, &b) {
		return b.ErrorCode()
	}
	var c coderC
	if errors.As(err, &c) {
		return c.ModbusCode()
	}

	return CodeGeneric
}

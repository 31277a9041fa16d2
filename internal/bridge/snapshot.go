// internal/bridge/snapshot.go
package bridge

import (
	"sync/atomic"
	"time"

	"github.com/tamzrod/dtsu-bridge/internal/poller"
)

// Snapshot is an immutable set of decoded measurements keyed by address.
// It is never modified after being published through a Store.
type Snapshot struct {
	At     time.Time
	byAddr map[uint16]poller.Reading
}

var emptySnapshot = &Snapshot{byAddr: map[uint16]poller.Reading{}}

// Lookup returns the reading stored for a measurement start address.
func (s *Snapshot) Lookup(addr uint16) (poller.Reading, bool) {
	if s == nil {
		return poller.Reading{}, false
	}
	r, ok := s.byAddr[addr]
	return r, ok
}

// Len returns the number of measurements held.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byAddr)
}

// Readings returns a copy of every reading, in no particular order.
func (s *Snapshot) Readings() []poller.Reading {
	if s == nil {
		return nil
	}
	out := make([]poller.Reading, 0, len(s.byAddr))
	for _, r := range s.byAddr {
		out = append(out, r)
	}
	return out
}

// with returns a new snapshot: s overlaid with readings.
// Measurements missing from readings keep their last good value.
func (s *Snapshot) with(at time.Time, readings []poller.Reading) *Snapshot {
	next := &Snapshot{
		At:     at,
		byAddr: make(map[uint16]poller.Reading, s.Len()+len(readings)),
	}
	if s != nil {
		for a, r := range s.byAddr {
			next.byAddr[a] = r
		}
	}
	for _, r := range readings {
		next.byAddr[r.Spec.Address] = r
	}
	return next
}

// Store publishes snapshots to concurrent readers.
// Readers always see one complete snapshot, never a mix of two.
type Store struct {
	p atomic.Pointer[Snapshot]
}

// Load returns the current snapshot. Never nil.
func (st *Store) Load() *Snapshot {
	if s := st.p.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Apply replaces the current snapshot with one that includes readings.
func (st *Store) Apply(at time.Time, readings []poller.Reading) *Snapshot {
	for {
		old := st.p.Load()
		next := old.with(at, readings)
		if st.p.CompareAndSwap(old, next) {
			return next
		}
	}
}

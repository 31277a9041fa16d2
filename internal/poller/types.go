// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
)

// ReadBlock describes one FC3 read geometry and the measurements it carries.
type ReadBlock struct {
	Address  uint16
	Quantity uint16
	Specs    []catalog.MeasurementSpec
}

// Reading is one decoded measurement.
type Reading struct {
	Spec  catalog.MeasurementSpec
	Value float64
	Words []uint16
	At    time.Time
}

// BlockError records one failed block read.
type BlockError struct {
	Block ReadBlock
	Err   error
}

// PollResult is produced by one poll cycle.
// Readings holds every measurement that was read successfully; a failed block
// only removes its own measurements.
type PollResult struct {
	At       time.Time
	Duration time.Duration
	Readings []Reading
	Failed   []BlockError
}

// Err returns the first block error, or nil when every block succeeded.
func (r PollResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return r.Failed[0].Err
}

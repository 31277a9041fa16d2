// internal/bridge/emulator.go
package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/image"
	"github.com/tamzrod/dtsu-bridge/internal/metrics"
	"github.com/tamzrod/dtsu-bridge/internal/telemetry"
)

// DefaultTestValues is a plausible light-load reading of a DTSU666.
func DefaultTestValues() map[string]float64 {
	return map[string]float64{
		catalog.VoltagePhaseAB: 403.6,
		catalog.VoltagePhaseBC: 408.0,
		catalog.VoltagePhaseCA: 404.5,

		catalog.VoltagePhaseA: 231.0,
		catalog.VoltagePhaseB: 235.1,
		catalog.VoltagePhaseC: 236.1,

		catalog.CurrentPhaseA: 0.339,
		catalog.CurrentPhaseB: 0.360,
		catalog.CurrentPhaseC: 0.352,

		catalog.ActivePowerPhaseA: 2.8,
		catalog.ActivePowerPhaseB: 11.8,
		catalog.ActivePowerPhaseC: 3.5,

		catalog.ReactivePowerPhaseA: -76.7,
		catalog.ReactivePowerPhaseB: -80.0,
		catalog.ReactivePowerPhaseC: -79.7,

		catalog.PowerFactorPhaseA: 0.036,
		catalog.PowerFactorPhaseB: 0.140,
		catalog.PowerFactorPhaseC: 0.102,

		catalog.TotalActivePower:   23.2,
		catalog.TotalReactivePower: -27.5,
		catalog.TotalPowerFactor:   0.094,
	}
}

// Emulator keeps a set of physical values and rewrites them into the image
// on every update tick. Values can be changed at runtime through Set.
type Emulator struct {
	img      *image.Image
	cat      *catalog.Catalog
	interval time.Duration
	pub      telemetry.Publisher
	metrics  *metrics.Metrics
	log      zerolog.Logger

	mu     sync.Mutex
	values map[string]float64
}

// NewEmulator validates the initial values and writes them once.
func NewEmulator(img *image.Image, values map[string]float64, interval time.Duration,
	pub telemetry.Publisher, m *metrics.Metrics, log zerolog.Logger) (*Emulator, error) {

	if img == nil {
		return nil, fmt.Errorf("emulator: image is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("emulator: interval must be > 0")
	}
	if pub == nil {
		pub = telemetry.Nop{}
	}

	e := &Emulator{
		img:      img,
		cat:      catalog.Default,
		interval: interval,
		pub:      pub,
		metrics:  m,
		log:      log.With().Str("component", "emulator").Logger(),
		values:   make(map[string]float64, len(values)),
	}
	for name, v := range values {
		if _, ok := e.cat.ByName(name); !ok {
			return nil, fmt.Errorf("emulator: unknown measurement %q", name)
		}
		e.values[name] = v
	}

	e.WriteOnce(time.Now())
	return e, nil
}

// Set changes one value. It is written on the next tick.
func (e *Emulator) Set(name string, v float64) error {
	if _, ok := e.cat.ByName(name); !ok {
		return fmt.Errorf("emulator: unknown measurement %q", name)
	}
	e.mu.Lock()
	e.values[name] = v
	e.mu.Unlock()

	e.log.Info().Str("name", name).Float64("value", v).Msg("value set")
	return nil
}

// Values returns a copy of the current values.
func (e *Emulator) Values() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]float64, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// WriteOnce encodes every value into the image and publishes it.
func (e *Emulator) WriteOnce(at time.Time) {
	values := e.Values()

	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		s, _ := e.cat.ByName(name)
		v := values[name]
		if err := e.img.SetValue(s, v); err != nil {
			e.log.Error().Err(err).Str("name", name).Msg("write value")
			continue
		}
		e.metrics.Measurement(name, v)
		e.pub.Publish(telemetry.Record{
			Key:       name,
			Timestamp: at,
			Address:   s.Address,
			Name:      name,
			Value:     telemetry.Float(v),
		})
	}
}

// Run rewrites the values every interval until ctx is done.
func (e *Emulator) Run(ctx context.Context) error {
	t := time.NewTicker(e.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			e.WriteOnce(now)
		}
	}
}

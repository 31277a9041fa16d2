// internal/bridge/bridge.go
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/codec"
	cfg "github.com/tamzrod/dtsu-bridge/internal/config"
	"github.com/tamzrod/dtsu-bridge/internal/image"
	"github.com/tamzrod/dtsu-bridge/internal/metrics"
	"github.com/tamzrod/dtsu-bridge/internal/poller"
	"github.com/tamzrod/dtsu-bridge/internal/status"
	"github.com/tamzrod/dtsu-bridge/internal/telemetry"
	"github.com/tamzrod/dtsu-bridge/internal/upstream"
)

// ClockInterval is the housekeeping period.
const ClockInterval = time.Second

// Options wires a Bridge. Link is required for both forwarding strategies.
type Options struct {
	Strategy  string
	Image     *image.Image
	Catalog   *catalog.Catalog
	Link      upstream.Reader
	Publisher telemetry.Publisher
	Metrics   *metrics.Metrics
	Synthetic []Synthetic

	// StaleAfter marks the link stale when no request succeeded for this long.
	// Zero disables it.
	StaleAfter time.Duration

	Log zerolog.Logger
}

// Bridge owns the image, the snapshot and the upstream link health.
type Bridge struct {
	strategy string
	img      *image.Image
	cat      *catalog.Catalog
	pub      telemetry.Publisher
	metrics  *metrics.Metrics
	store    Store
	tracker  *status.Tracker
	provider ReadProvider
	now      func() time.Time
	log      zerolog.Logger
}

// New builds a bridge for the configured strategy.
func New(o Options) (*Bridge, error) {
	if o.Image == nil {
		return nil, fmt.Errorf("bridge: image is required")
	}
	if o.Link == nil {
		return nil, fmt.Errorf("bridge: upstream link is required")
	}
	if o.Catalog == nil {
		o.Catalog = catalog.Default
	}
	if o.Publisher == nil {
		o.Publisher = telemetry.Nop{}
	}

	log := o.Log.With().Str("component", "bridge").Str("strategy", o.Strategy).Logger()

	b := &Bridge{
		strategy: o.Strategy,
		img:      o.Image,
		cat:      o.Catalog,
		pub:      o.Publisher,
		metrics:  o.Metrics,
		now:      time.Now,
		log:      log,
	}

	b.tracker = status.NewTracker(o.StaleAfter, func(s status.Snapshot) {
		b.metrics.LinkStatus(s)
		log.Debug().
			Str("health", status.HealthName(s.Health)).
			Uint16("last_error", s.LastErrorCode).
			Uint16("seconds_in_error", s.SecondsInError).
			Msg("upstream status")
	})

	switch o.Strategy {
	case cfg.StrategyOnDemand:
		b.provider = &OnDemand{
			link:    o.Link,
			img:     o.Image,
			cat:     o.Catalog,
			pub:     o.Publisher,
			metrics: o.Metrics,
			now:     func() time.Time { return b.now() },
			log:     log,
		}
	case cfg.StrategyCacheAndServe:
		b.provider = &CacheAndServe{
			store:   &b.store,
			img:     o.Image,
			cat:     o.Catalog,
			synth:   o.Synthetic,
			metrics: o.Metrics,
			log:     log,
		}
	default:
		return nil, fmt.Errorf("bridge: unknown strategy %q", o.Strategy)
	}

	return b, nil
}

// Provider is what the downstream slave calls for every read.
func (b *Bridge) Provider() ReadProvider { return b.provider }

// Snapshot returns the current measurement snapshot.
func (b *Bridge) Snapshot() *Snapshot { return b.store.Load() }

// Tracker exposes upstream link health.
func (b *Bridge) Tracker() *status.Tracker { return b.tracker }

// ObserveUpstream is installed as the link observer.
func (b *Bridge) ObserveUpstream(d time.Duration, err error) {
	b.metrics.UpstreamRequest(d, upstream.ErrorKind(err))
	b.tracker.Observe(err, b.now())
}

// Seed installs initial values so cache-and-serve can answer before the
// first successful poll.
func (b *Bridge) Seed(values map[string]float64) error {
	if len(values) == 0 {
		return nil
	}
	at := b.now()

	readings := make([]poller.Reading, 0, len(values))
	for name, v := range values {
		s, ok := b.cat.ByName(name)
		if !ok {
			return fmt.Errorf("bridge: seed: unknown measurement %q", name)
		}
		readings = append(readings, poller.Reading{
			Spec:  s,
			Value: v,
			Words: codec.Encode(v, s).Words(),
			At:    at,
		})
	}

	b.store.Apply(at, readings)
	for _, r := range readings {
		if err := b.img.SetValue(r.Spec, r.Value); err != nil {
			return fmt.Errorf("bridge: seed %s: %w", r.Spec.Name, err)
		}
	}

	b.log.Info().Int("values", len(readings)).Msg("snapshot seeded")
	return nil
}

// Apply merges one poll cycle into the snapshot, mirrors it into the image and
// publishes name-keyed telemetry. Failed blocks keep their last good values.
func (b *Bridge) Apply(res poller.PollResult) {
	for _, f := range res.Failed {
		b.log.Warn().
			Err(f.Err).
			Str("addr", hex(f.Block.Address)).
			Uint16("count", f.Block.Quantity).
			Msg("poll block failed, keeping last values")
	}
	if len(res.Readings) == 0 {
		return
	}

	snap := b.store.Apply(res.At, res.Readings)

	for _, r := range res.Readings {
		if err := b.img.Write(r.Spec.Address, r.Words); err != nil {
			b.log.Debug().Err(err).Str("name", r.Spec.Name).Msg("image update skipped")
		}
		b.metrics.Measurement(r.Spec.Name, r.Value)
		b.pub.Publish(telemetry.Record{
			Key:       r.Spec.Name,
			Timestamp: r.At,
			Address:   r.Spec.Address,
			Name:      r.Spec.Name,
			Value:     telemetry.Float(r.Value),
			Values:    r.Words,
		})
	}

	b.log.Debug().
		Int("updated", len(res.Readings)).
		Int("failed_blocks", len(res.Failed)).
		Int("snapshot", snap.Len()).
		Msg("snapshot replaced")
}

// RunPoll drives p and applies every result until ctx is done.
func (b *Bridge) RunPoll(ctx context.Context, p *poller.Poller) error {
	results := make(chan poller.PollResult)
	done := make(chan struct{})

	go func() {
		defer close(done)
		p.Run(ctx, results)
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil
		case res := <-results:
			b.metrics.PollCycle(res.Duration)
			b.Apply(res)
		}
	}
}

// RunClock writes the clock registers now and then every ClockInterval, and
// advances link health once per tick.
func (b *Bridge) RunClock(ctx context.Context) error {
	return RunClock(ctx, b.img, func(now time.Time) { b.tracker.Tick(now) })
}

// RunClock is the housekeeping loop shared with the emulator.
func RunClock(ctx context.Context, img *image.Image, onTick func(time.Time)) error {
	tick := func() {
		now := time.Now()
		img.SetClock(now)
		if onTick != nil {
			onTick(now)
		}
	}

	tick()

	t := time.NewTicker(ClockInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			tick()
		}
	}
}

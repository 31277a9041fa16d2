// cmd/dtsubridge/bridge.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/dtsu-bridge/internal/bridge"
	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/config"
	"github.com/tamzrod/dtsu-bridge/internal/image"
	"github.com/tamzrod/dtsu-bridge/internal/metrics"
	"github.com/tamzrod/dtsu-bridge/internal/poller"
	"github.com/tamzrod/dtsu-bridge/internal/slave"
	"github.com/tamzrod/dtsu-bridge/internal/upstream"
)

// staleCycles is how many missed poll intervals mark the link stale.
const staleCycles = 3

func runBridge(ctx context.Context, c *config.Config, log zerolog.Logger) error {
	m := metrics.New()
	cache := c.Bridge.Strategy == config.StrategyCacheAndServe
	pollInterval := time.Duration(c.Bridge.PollIntervalMs) * time.Millisecond

	// --------------------
	// Upstream
	// --------------------

	link := upstream.Build(c.Upstream, log)
	defer link.Close()

	if err := link.Open(); err != nil {
		if !cache || len(c.Bridge.Seed) == 0 {
			return fmt.Errorf("upstream: %w", err)
		}
		log.Warn().Err(err).Msg("upstream unavailable at start, serving seed values")
	}

	// --------------------
	// Telemetry
	// --------------------

	tel, err := openTelemetry(c.MQTT, m, nil, log)
	if err != nil {
		return err
	}
	defer tel.close()

	// --------------------
	// Bridge
	// --------------------

	synth, err := bridge.NewSynthetics(catalog.Default, c.Bridge.Synthetic)
	if err != nil {
		return err
	}

	var staleAfter time.Duration
	if cache {
		staleAfter = staleCycles * pollInterval
	}

	b, err := bridge.New(bridge.Options{
		Strategy:   c.Bridge.Strategy,
		Image:      image.New(c.Device.ID),
		Catalog:    catalog.Default,
		Link:       link,
		Publisher:  tel.pub,
		Metrics:    m,
		Synthetic:  synth,
		StaleAfter: staleAfter,
		Log:        log,
	})
	if err != nil {
		return err
	}
	link.SetObserver(b.ObserveUpstream)

	if cache {
		if err := b.Seed(c.Bridge.Seed); err != nil {
			return err
		}
	}

	var p *poller.Poller
	if cache {
		p, err = poller.Build("dtsu666", pollInterval, c.Bridge.MaxBlockWords, link)
		if err != nil {
			return err
		}
		log.Info().
			Int("blocks", len(p.Blocks())).
			Dur("interval", pollInterval).
			Msg("poller ready")
	}

	// --------------------
	// Tasks
	// --------------------

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.RunClock(gctx) })

	if p != nil {
		g.Go(func() error { return b.RunPoll(gctx, p) })
	}

	tel.start(gctx, g)
	startMetrics(gctx, g, m, c.Metrics, log)

	srv := slave.New(b.Provider(), c.Downstream.SlaveID, log)
	g.Go(func() error { return srv.Serve(gctx, c.Downstream) })

	log.Info().
		Str("strategy", c.Bridge.Strategy).
		Uint8("device_id", c.Device.ID).
		Msg("bridge running")

	return g.Wait()
}

// cmd/dtsubridge/emulate.go
package main

import (
	"context"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/dtsu-bridge/internal/bridge"
	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/config"
	"github.com/tamzrod/dtsu-bridge/internal/image"
	"github.com/tamzrod/dtsu-bridge/internal/metrics"
	"github.com/tamzrod/dtsu-bridge/internal/slave"
	"github.com/tamzrod/dtsu-bridge/internal/telemetry"
)

// runEmulator serves a standalone meter. verbose logs every master read.
func runEmulator(ctx context.Context, c *config.Config, verbose bool, log zerolog.Logger) error {
	m := metrics.New()
	img := image.New(c.Device.ID)

	values := c.Emulator.Values
	if len(values) == 0 {
		values = bridge.DefaultTestValues()
	}

	// set messages may arrive before the emulator exists
	var emu atomic.Pointer[bridge.Emulator]

	var onConnect func(mqtt.Client)
	if c.MQTT.Subscribe {
		onConnect = func(client mqtt.Client) {
			err := telemetry.Subscribe(client, c.MQTT.TopicPrefix, c.MQTT.QoS, func(name string, v float64) {
				e := emu.Load()
				if e == nil {
					return
				}
				if err := e.Set(name, v); err != nil {
					log.Warn().Err(err).Msg("set ignored")
				}
			}, log)
			if err != nil {
				log.Error().Err(err).Msg("subscribe")
			}
		}
	}

	tel, err := openTelemetry(c.MQTT, m, onConnect, log)
	if err != nil {
		return err
	}
	defer tel.close()

	interval := time.Duration(c.Emulator.UpdateIntervalMs) * time.Millisecond
	e, err := bridge.NewEmulator(img, values, interval, tel.pub, m, log)
	if err != nil {
		return err
	}
	emu.Store(e)

	provider := &bridge.Static{
		Image:   img,
		Catalog: catalog.Default,
		Verbose: verbose,
		Metrics: m,
		Log:     log.With().Str("component", "emulator").Logger(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return bridge.RunClock(gctx, img, nil) })
	g.Go(func() error { return e.Run(gctx) })
	tel.start(gctx, g)
	startMetrics(gctx, g, m, c.Metrics, log)

	srv := slave.New(provider, c.Downstream.SlaveID, log)
	g.Go(func() error { return srv.Serve(gctx, c.Downstream) })

	log.Info().
		Uint8("device_id", c.Device.ID).
		Int("values", len(values)).
		Bool("verbose", verbose).
		Msg("emulator running")

	return g.Wait()
}

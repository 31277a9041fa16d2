// cmd/dtsubridge/setup.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/dtsu-bridge/internal/config"
	"github.com/tamzrod/dtsu-bridge/internal/metrics"
	"github.com/tamzrod/dtsu-bridge/internal/telemetry"
)

// setup loads, validates and normalizes the config and builds the logger.
func setup(path string) (*config.Config, zerolog.Logger, error) {
	c, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := config.Validate(c); err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config validation failed: %w", err)
	}
	config.Normalize(c)

	return c, newLogger(c.Logging, os.Stderr), nil
}

func newLogger(l config.LoggingConfig, out io.Writer) zerolog.Logger {
	w := out
	if !strings.EqualFold(l.Format, "json") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// ------------------------------------------------------------
// TELEMETRY
// ------------------------------------------------------------

// sink bundles the publisher with what has to be run and closed for it.
type sink struct {
	pub    telemetry.Publisher
	mq     *telemetry.MQTT
	client mqtt.Client
}

func openTelemetry(c config.MQTTConfig, m *metrics.Metrics, onConnect func(mqtt.Client), log zerolog.Logger) (*sink, error) {
	s := &sink{pub: telemetry.Nop{}}
	if !c.Enabled {
		return s, nil
	}

	client := telemetry.Connect(c, onConnect, log)
	mq, err := telemetry.NewMQTT(client, c, m, log)
	if err != nil {
		client.Disconnect(250)
		return nil, err
	}

	s.pub, s.mq, s.client = mq, mq, client
	return s, nil
}

func (s *sink) start(ctx context.Context, g *errgroup.Group) {
	if s.mq == nil {
		return
	}
	g.Go(func() error { return s.mq.Run(ctx) })
}

func (s *sink) close() {
	if s.client != nil {
		s.client.Disconnect(250)
	}
}

// startMetrics serves /metrics when configured.
func startMetrics(ctx context.Context, g *errgroup.Group, m *metrics.Metrics, c config.MetricsConfig, log zerolog.Logger) {
	if c.Listen == "" {
		return
	}
	g.Go(func() error { return m.Serve(ctx, c.Listen, log) })
}

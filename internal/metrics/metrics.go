// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/dtsu-bridge/internal/status"
)

const namespace = "dtsu"

// Result labels for inbound reads.
const (
	ResultOK       = "ok"
	ResultFallback = "fallback"
	ResultUnknown  = "unknown"
)

// Metrics holds every collector of the process.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	Registry *prometheus.Registry

	inboundReads     *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
	upstreamLatency  prometheus.Histogram
	pollDuration     prometheus.Histogram
	measurement      *prometheus.GaugeVec
	linkHealth       prometheus.Gauge
	linkSecondsInErr prometheus.Gauge
	linkLastError    prometheus.Gauge
	published        prometheus.Counter
	publishFailed    prometheus.Counter
	publishDropped   prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		inboundReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inbound_reads_total",
			Help: "Read requests served to the downstream master.",
		}, []string{"strategy", "result"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "upstream_errors_total",
			Help: "Failed requests to the real meter by kind.",
		}, []string{"kind"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "upstream_request_seconds",
			Help:    "Upstream request latency including throttle wait.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5},
		}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "poll_cycle_seconds",
			Help:    "Duration of one cache-and-serve poll cycle.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		measurement: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "measurement",
			Help: "Last bridged physical value per measurement.",
		}, []string{"name"}),
		linkHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "upstream_health",
			Help: "Upstream link health (0 unknown, 1 ok, 2 error, 3 stale).",
		}),
		linkSecondsInErr: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "upstream_seconds_in_error",
			Help: "Seconds the upstream link has been unhealthy.",
		}),
		linkLastError: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "upstream_last_error_code",
			Help: "Last upstream error code (Modbus exception or 1).",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "telemetry_published_total",
			Help: "Telemetry messages handed to the broker.",
		}),
		publishFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "telemetry_failed_total",
			Help: "Telemetry messages the broker did not accept.",
		}),
		publishDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "telemetry_dropped_total",
			Help: "Telemetry messages dropped because the queue was full.",
		}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inboundReads, m.upstreamErrors, m.upstreamLatency, m.pollDuration,
		m.measurement, m.linkHealth, m.linkSecondsInErr, m.linkLastError,
		m.published, m.publishFailed, m.publishDropped,
	)

	return m
}

// ---- recorders ----

func (m *Metrics) InboundRead(strategy, result string) {
	if m == nil {
		return
	}
	m.inboundReads.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) UpstreamRequest(d time.Duration, kind string) {
	if m == nil {
		return
	}
	m.upstreamLatency.Observe(d.Seconds())
	if kind != "" {
		m.upstreamErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) PollCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.Observe(d.Seconds())
}

func (m *Metrics) Measurement(name string, v float64) {
	if m == nil {
		return
	}
	m.measurement.WithLabelValues(name).Set(v)
}

func (m *Metrics) LinkStatus(s status.Snapshot) {
	if m == nil {
		return
	}
	m.linkHealth.Set(float64(s.Health))
	m.linkSecondsInErr.Set(float64(s.SecondsInError))
	m.linkLastError.Set(float64(s.LastErrorCode))
}

func (m *Metrics) Published() {
	if m == nil {
		return
	}
	m.published.Inc()
}

func (m *Metrics) PublishFailed() {
	if m == nil {
		return
	}
	m.publishFailed.Inc()
}

func (m *Metrics) PublishDropped() {
	if m == nil {
		return
	}
	m.publishDropped.Inc()
}

// ---- HTTP ----

// Serve exposes /metrics on listen until ctx is done.
func (m *Metrics) Serve(ctx context.Context, listen string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("listen", listen).Msg("metrics endpoint up")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// internal/metrics/metrics_test.go
package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/tamzrod/dtsu-bridge/internal/status"
)

func TestNilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.InboundRead("on_demand", ResultOK)
		m.UpstreamRequest(time.Second, "timeout")
		m.PollCycle(time.Second)
		m.Measurement("Frequency", 50)
		m.LinkStatus(status.Snapshot{})
		m.Published()
		m.PublishFailed()
		m.PublishDropped()
	})
}

func TestCounters(t *testing.T) {
	m := New()

	m.InboundRead("cache_and_serve", ResultOK)
	m.InboundRead("cache_and_serve", ResultOK)
	m.InboundRead("cache_and_serve", ResultUnknown)
	m.UpstreamRequest(100*time.Millisecond, "")
	m.UpstreamRequest(time.Second, "timeout")
	m.Measurement("Voltage_Phase_A", 231)
	m.LinkStatus(status.Snapshot{Health: status.HealthError, SecondsInError: 7, LastErrorCode: 2})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inboundReads.WithLabelValues("cache_and_serve", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inboundReads.WithLabelValues("cache_and_serve", ResultUnknown)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamErrors.WithLabelValues("timeout")))
	assert.Equal(t, 231.0, testutil.ToFloat64(m.measurement.WithLabelValues("Voltage_Phase_A")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.linkHealth))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.linkSecondsInErr))
}

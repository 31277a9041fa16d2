// internal/upstream/builder.go
package upstream

import (
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/dtsu-bridge/internal/config"
)

// Build constructs a Link for the configured meter.
// The factory picks a network gateway when a URL is set, the local serial port otherwise.
// Nothing is opened here; callers decide whether a failed Open is fatal.
func Build(u cfg.UpstreamConfig, log zerolog.Logger) *Link {
	timeout := time.Duration(u.TimeoutMs) * time.Millisecond

	// ONE attempt per call
	factory := func() (Transport, error) {
		if u.URL != "" {
			return NewURLClient(u.URL, u.SlaveID, timeout)
		}
		return NewRTUClient(SerialConfig{
			Port:     u.Port,
			BaudRate: u.BaudRate,
			DataBits: u.DataBits,
			Parity:   u.Parity,
			StopBits: u.StopBits,
			SlaveID:  u.SlaveID,
			Timeout:  timeout,
		})
	}

	throttle := NewThrottle(time.Duration(u.MinIntervalMs)*time.Millisecond, nil)

	return NewLink(factory, throttle, log)
}

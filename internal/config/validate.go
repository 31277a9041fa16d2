// internal/config/validate.go
package config

import (
	"fmt"
	"strings"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/image"
)

// Validate checks configuration correctness.
// It performs declarative validation only. Zero values mean "default" and pass.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// SERIAL LINKS
	// ------------------------------------------------------------

	if err := validateSerial("upstream", cfg.Upstream.SerialConfig); err != nil {
		return err
	}
	if err := validateSerial("downstream", cfg.Downstream.SerialConfig); err != nil {
		return err
	}

	if cfg.Upstream.URL != "" {
		if !strings.HasPrefix(cfg.Upstream.URL, "tcp://") &&
			!strings.HasPrefix(cfg.Upstream.URL, "rtuovertcp://") {
			return fmt.Errorf("upstream: url %q must use tcp:// or rtuovertcp://", cfg.Upstream.URL)
		}
	}
	if cfg.Upstream.TimeoutMs < 0 || cfg.Upstream.MinIntervalMs < 0 {
		return fmt.Errorf("upstream: timeout_ms and min_interval_ms must be >= 0")
	}
	if cfg.Upstream.SlaveID > 247 || cfg.Downstream.SlaveID > 247 || cfg.Device.ID > 247 {
		return fmt.Errorf("slave ids must be in 0..247")
	}

	// ------------------------------------------------------------
	// BRIDGE
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Bridge.Strategy) {
	case "", StrategyOnDemand, StrategyCacheAndServe:
	default:
		return fmt.Errorf("bridge: unknown strategy %q", cfg.Bridge.Strategy)
	}
	if cfg.Bridge.PollIntervalMs < 0 {
		return fmt.Errorf("bridge: poll_interval_ms must be >= 0")
	}
	// zero means default; a block must hold at least one float pair
	if mb := cfg.Bridge.MaxBlockWords; mb != 0 && (mb < 2 || mb > 125) {
		return fmt.Errorf("bridge: max_block_words must be in 2..125, got %d", mb)
	}

	for name := range cfg.Bridge.Seed {
		if _, ok := catalog.Default.ByName(name); !ok {
			return fmt.Errorf("bridge: seed references unknown measurement %q", name)
		}
	}

	if err := validateSynthetic(cfg.Bridge.Synthetic); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// MQTT
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt: broker required when enabled")
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: qos %d out of range", cfg.MQTT.QoS)
	}
	switch cfg.MQTT.Payload {
	case "", PayloadJSON, PayloadCBOR:
	default:
		return fmt.Errorf("mqtt: unknown payload format %q", cfg.MQTT.Payload)
	}

	// ------------------------------------------------------------
	// EMULATOR
	// ------------------------------------------------------------

	for name := range cfg.Emulator.Values {
		if _, ok := catalog.Default.ByName(name); !ok {
			return fmt.Errorf("emulator: unknown measurement %q", name)
		}
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging: unknown format %q", cfg.Logging.Format)
	}

	return nil
}

func validateSerial(link string, s SerialConfig) error {
	switch strings.ToUpper(s.Parity) {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("%s: parity %q must be N, E or O", link, s.Parity)
	}
	switch s.StopBits {
	case 0, 1, 2:
	default:
		return fmt.Errorf("%s: stop_bits %d must be 1 or 2", link, s.StopBits)
	}
	switch s.DataBits {
	case 0, 7, 8:
	default:
		return fmt.Errorf("%s: data_bits %d must be 7 or 8", link, s.DataBits)
	}
	if s.BaudRate < 0 {
		return fmt.Errorf("%s: baud_rate must be >= 0", link)
	}
	return nil
}

func validateSynthetic(entries []SyntheticConfig) error {
	type span struct {
		start uint32
		end   uint32 // exclusive
		owner string
	}

	var spans []span

	// header, clock and catalog ranges are reserved
	spans = append(spans,
		span{start: image.HeaderAddress, end: image.HeaderAddress + image.HeaderWords, owner: "header"},
		span{start: image.ClockAddress, end: image.ClockAddress + image.ClockWords, owner: "clock"},
	)
	for _, s := range catalog.Default.Specs() {
		spans = append(spans, span{start: uint32(s.Address), end: s.End(), owner: s.Name})
	}

	for _, e := range entries {
		if _, ok := catalog.Default.ByName(e.Source); !ok {
			return fmt.Errorf("synthetic 0x%04X: unknown source %q", e.Address, e.Source)
		}

		switch e.Mode {
		case "", SyntheticModeCatalog, SyntheticModeFixed:
		default:
			return fmt.Errorf("synthetic 0x%04X: unknown mode %q", e.Address, e.Mode)
		}

		words := uint32(e.Words)
		switch words {
		case 0:
			words = 2
		case 1, 2:
		default:
			return fmt.Errorf("synthetic 0x%04X: words must be 1 or 2", e.Address)
		}

		start := uint32(e.Address)
		end := start + words
		owner := fmt.Sprintf("synthetic(%s)", e.Source)

		for _, s := range spans {
			// overlap check (half-open)
			if start < s.end && s.start < end {
				return fmt.Errorf(
					"synthetic overlap: range=0x%04X-0x%04X (%s) overlaps %s",
					start, end-1, owner, s.owner,
				)
			}
		}

		spans = append(spans, span{start: start, end: end, owner: owner})
	}

	return nil
}

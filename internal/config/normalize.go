// internal/config/normalize.go
package config

import "strings"

// Defaults matching the DTSU666 factory settings.
const (
	DefaultBaudRate         = 9600
	DefaultDataBits         = 8
	DefaultParity           = "N"
	DefaultStopBits         = 1
	DefaultTimeoutMs        = 1000
	DefaultMinIntervalMs    = 1000
	DefaultPollIntervalMs   = 30000
	DefaultMaxBlockWords    = 64
	DefaultUpdateIntervalMs = 1100
	DefaultTopicPrefix      = "dtsu666"
	DefaultQueueSize        = 256
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Device.ID == 0 {
		cfg.Device.ID = 1
	}

	normalizeSerial(&cfg.Upstream.SerialConfig)
	normalizeSerial(&cfg.Downstream.SerialConfig)

	// ------------------------------------------------------------
	// UPSTREAM
	// ------------------------------------------------------------

	if cfg.Upstream.SlaveID == 0 {
		cfg.Upstream.SlaveID = cfg.Device.ID
	}
	if cfg.Upstream.TimeoutMs <= 0 {
		cfg.Upstream.TimeoutMs = DefaultTimeoutMs
	}
	// The meter needs ~1s between commands; zero means "use the default", not "no throttle".
	if cfg.Upstream.MinIntervalMs <= 0 {
		cfg.Upstream.MinIntervalMs = DefaultMinIntervalMs
	}

	// ------------------------------------------------------------
	// DOWNSTREAM
	// ------------------------------------------------------------

	if cfg.Downstream.SlaveID == 0 {
		cfg.Downstream.SlaveID = cfg.Device.ID
	}

	// ------------------------------------------------------------
	// BRIDGE
	// ------------------------------------------------------------

	cfg.Bridge.Strategy = strings.ToLower(cfg.Bridge.Strategy)
	if cfg.Bridge.Strategy == "" {
		cfg.Bridge.Strategy = StrategyOnDemand
	}
	if cfg.Bridge.PollIntervalMs <= 0 {
		cfg.Bridge.PollIntervalMs = DefaultPollIntervalMs
	}
	if cfg.Bridge.MaxBlockWords == 0 {
		cfg.Bridge.MaxBlockWords = DefaultMaxBlockWords
	}
	for i := range cfg.Bridge.Synthetic {
		s := &cfg.Bridge.Synthetic[i]
		if s.Mode == "" {
			s.Mode = SyntheticModeCatalog
		}
		if s.Words == 0 {
			s.Words = 2
		}
		if s.Factor == 0 {
			s.Factor = 1
		}
	}

	// ------------------------------------------------------------
	// MQTT
	// ------------------------------------------------------------

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	cfg.MQTT.TopicPrefix = strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")
	if cfg.MQTT.Payload == "" {
		cfg.MQTT.Payload = PayloadJSON
	}
	if cfg.MQTT.QueueSize <= 0 {
		cfg.MQTT.QueueSize = DefaultQueueSize
	}

	// ------------------------------------------------------------
	// EMULATOR / LOGGING
	// ------------------------------------------------------------

	if cfg.Emulator.UpdateIntervalMs <= 0 {
		cfg.Emulator.UpdateIntervalMs = DefaultUpdateIntervalMs
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

func normalizeSerial(s *SerialConfig) {
	if s.BaudRate == 0 {
		s.BaudRate = DefaultBaudRate
	}
	if s.DataBits == 0 {
		s.DataBits = DefaultDataBits
	}
	if s.Parity == "" {
		s.Parity = DefaultParity
	}
	s.Parity = strings.ToUpper(s.Parity)
	if s.StopBits == 0 {
		s.StopBits = DefaultStopBits
	}
}

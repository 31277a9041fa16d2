// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Upstream   UpstreamConfig   `yaml:"upstream"`
	Downstream DownstreamConfig `yaml:"downstream"`
	Bridge     BridgeConfig     `yaml:"bridge"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Emulator   EmulatorConfig   `yaml:"emulator"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ---- DEVICE ----

// DeviceConfig identifies the emulated meter (header block + downstream slave id default).
type DeviceConfig struct {
	ID uint8 `yaml:"id"`
}

// ---- SERIAL LINKS ----

type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
}

// UpstreamConfig is the link to the real meter.
type UpstreamConfig struct {
	SerialConfig `yaml:",inline"`

	// URL selects a network gateway instead of a local port (tcp:// or rtuovertcp://).
	URL           string `yaml:"url"`
	SlaveID       uint8  `yaml:"slave_id"`
	TimeoutMs     int    `yaml:"timeout_ms"`
	MinIntervalMs int    `yaml:"min_interval_ms"`
}

// DownstreamConfig is the link to the consuming master.
type DownstreamConfig struct {
	SerialConfig `yaml:",inline"`

	SlaveID uint8 `yaml:"slave_id"`
}

// ---- BRIDGE ----

const (
	StrategyOnDemand      = "on_demand"
	StrategyCacheAndServe = "cache_and_serve"
)

type BridgeConfig struct {
	Strategy       string             `yaml:"strategy"`
	PollIntervalMs int                `yaml:"poll_interval_ms"`
	MaxBlockWords  int                `yaml:"max_block_words"`
	Seed           map[string]float64 `yaml:"seed"`
	Synthetic      []SyntheticConfig  `yaml:"synthetic"`
}

const (
	SyntheticModeCatalog = "catalog"
	SyntheticModeFixed   = "fixed"
)

// SyntheticConfig maps an extra address onto a snapshot value.
type SyntheticConfig struct {
	Address uint16  `yaml:"address"`
	Source  string  `yaml:"source"`
	Mode    string  `yaml:"mode"`   // catalog | fixed
	Factor  float64 `yaml:"factor"` // fixed mode: register = value * factor
	Words   uint8   `yaml:"words"`  // 1 = integer register, 2 = float pair
}

// ---- MQTT ----

const (
	PayloadJSON = "json"
	PayloadCBOR = "cbor"
)

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
	Payload     string `yaml:"payload"`
	QueueSize   int    `yaml:"queue_size"`
	Subscribe   bool   `yaml:"subscribe"`
}

// ---- EMULATOR ----

type EmulatorConfig struct {
	UpdateIntervalMs int                `yaml:"update_interval_ms"`
	Values           map[string]float64 `yaml:"values"`
}

// ---- METRICS / LOGGING ----

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file. It does not validate.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// internal/telemetry/mqtt.go
package telemetry

import (
	"context"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/dtsu-bridge/internal/config"
	"github.com/tamzrod/dtsu-bridge/internal/metrics"
)

const publishTimeout = 5 * time.Second

// broker is the part of mqtt.Client the publisher uses.
type broker interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTT publishes records from a bounded queue on its own goroutine.
// A full queue drops the record; the bridge never waits on the broker.
type MQTT struct {
	client  broker
	prefix  string
	qos     byte
	retain  bool
	encode  Encoder
	queue   chan Record
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewMQTT wires a publisher onto a connected client.
func NewMQTT(client broker, c cfg.MQTTConfig, m *metrics.Metrics, log zerolog.Logger) (*MQTT, error) {
	enc, err := NewEncoder(c.Payload)
	if err != nil {
		return nil, err
	}
	size := c.QueueSize
	if size <= 0 {
		size = cfg.DefaultQueueSize
	}

	return &MQTT{
		client:  client,
		prefix:  strings.TrimSuffix(c.TopicPrefix, "/"),
		qos:     c.QoS,
		retain:  c.Retain,
		encode:  enc,
		queue:   make(chan Record, size),
		metrics: m,
		log:     log.With().Str("component", "telemetry").Logger(),
	}, nil
}

// Topic returns the full topic for a record key.
func (p *MQTT) Topic(key string) string {
	if p.prefix == "" {
		return key
	}
	return p.prefix + "/" + key
}

// Publish enqueues r or drops it when the queue is full.
func (p *MQTT) Publish(r Record) {
	select {
	case p.queue <- r:
	default:
		p.metrics.PublishDropped()
		p.log.Warn().Str("key", r.Key).Msg("telemetry queue full, record dropped")
	}
}

// Run drains the queue until ctx is done.
func (p *MQTT) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-p.queue:
			p.send(r)
		}
	}
}

func (p *MQTT) send(r Record) {
	payload, err := p.encode(r)
	if err != nil {
		p.metrics.PublishFailed()
		p.log.Error().Err(err).Str("key", r.Key).Msg("encode telemetry")
		return
	}

	topic := p.Topic(r.Key)
	tok := p.client.Publish(topic, p.qos, p.retain, payload)
	if !tok.WaitTimeout(publishTimeout) {
		p.metrics.PublishFailed()
		p.log.Warn().Str("topic", topic).Msg("publish timed out")
		return
	}
	if err := tok.Error(); err != nil {
		p.metrics.PublishFailed()
		p.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
		return
	}

	p.metrics.Published()
}

// ---- connection ----

// ClientID returns the configured id or a unique one.
func ClientID(c cfg.MQTTConfig) string {
	if c.ClientID != "" {
		return c.ClientID
	}
	return "dtsu-bridge-" + uuid.NewString()[:8]
}

// Connect starts a client with auto-reconnect and returns without waiting for
// the broker: telemetry is best effort and must not hold up the bridge.
// onConnect runs after every (re)connect.
func Connect(c cfg.MQTTConfig, onConnect func(mqtt.Client), log zerolog.Logger) mqtt.Client {
	log = log.With().Str("component", "mqtt").Logger()

	opts := mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetClientID(ClientID(c)).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("broker connection lost")
		}).
		SetOnConnectHandler(func(client mqtt.Client) {
			log.Info().Str("broker", c.Broker).Msg("broker connected")
			if onConnect != nil {
				onConnect(client)
			}
		})
	if c.Username != "" {
		opts.SetUsername(c.Username)
		opts.SetPassword(c.Password)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()

	go func() {
		<-tok.Done()
		if err := tok.Error(); err != nil {
			log.Error().Err(err).Str("broker", c.Broker).Msg("mqtt connect")
		}
	}()

	return client
}

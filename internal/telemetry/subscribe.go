// internal/telemetry/subscribe.go
package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// SetHandler receives a measurement override from the broker.
type SetHandler func(name string, value float64)

// SetTopic is the wildcard the emulator listens on.
func SetTopic(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/set/+"
}

// ParseSet extracts name and value from a "<prefix>/set/<Name>" message.
func ParseSet(topic string, payload []byte) (string, float64, error) {
	i := strings.LastIndex(topic, "/set/")
	if i < 0 || i+5 >= len(topic) {
		return "", 0, fmt.Errorf("telemetry: not a set topic %q", topic)
	}
	name := topic[i+5:]

	v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
	if err != nil {
		return "", 0, fmt.Errorf("telemetry: %s: %w", name, err)
	}
	return name, v, nil
}

// Subscribe registers h for set messages. Safe to call from an OnConnect handler.
func Subscribe(client mqtt.Client, prefix string, qos byte, h SetHandler, log zerolog.Logger) error {
	topic := SetTopic(prefix)
	tok := client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		name, v, err := ParseSet(msg.Topic(), msg.Payload())
		if err != nil {
			log.Warn().Err(err).Msg("ignoring set message")
			return
		}
		h(name, v)
	})
	if tok.Wait() && tok.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", topic, tok.Error())
	}
	log.Info().Str("topic", topic).Msg("subscribed")
	return nil
}

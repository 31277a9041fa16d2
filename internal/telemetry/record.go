// internal/telemetry/record.go
package telemetry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"

	cfg "github.com/tamzrod/dtsu-bridge/internal/config"
)

// Record is one telemetry message.
// Key is the topic suffix and is not part of the payload.
type Record struct {
	Key string `json:"-" cbor:"-"`

	Timestamp    time.Time          `json:"timestamp" cbor:"timestamp"`
	Address      uint16             `json:"address" cbor:"address"`
	Name         string             `json:"name,omitempty" cbor:"name,omitempty"`
	Value        *float64           `json:"value,omitempty" cbor:"value,omitempty"`
	Values       []uint16           `json:"values,omitempty" cbor:"values,omitempty"`
	Measurements map[string]float64 `json:"measurements,omitempty" cbor:"measurements,omitempty"`
}

// Float returns a pointer for Record.Value.
func Float(v float64) *float64 { return &v }

// Publisher accepts records without blocking the caller.
type Publisher interface {
	Publish(r Record)
}

// Nop discards everything. Used when MQTT is disabled.
type Nop struct{}

func (Nop) Publish(Record) {}

// Encoder turns a record into a payload.
type Encoder func(r Record) ([]byte, error)

// NewEncoder picks the payload format.
func NewEncoder(format string) (Encoder, error) {
	switch format {
	case "", cfg.PayloadJSON:
		return func(r Record) ([]byte, error) { return json.Marshal(r) }, nil
	case cfg.PayloadCBOR:
		em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
		if err != nil {
			return nil, err
		}
		return func(r Record) ([]byte, error) { return em.Marshal(r) }, nil
	default:
		return nil, fmt.Errorf("telemetry: unknown payload format %q", format)
	}
}

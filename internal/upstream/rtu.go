// internal/upstream/rtu.go
package upstream

import (
	"errors"
	"time"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/dtsu-bridge/internal/codec"
)

// SerialConfig is the minimal serial transport config.
type SerialConfig struct {
	Port     string
	BaudRate int
	DataBits int
	Parity   string // "N", "E", "O"
	StopBits int
	SlaveID  uint8
	Timeout  time.Duration
}

// RTUClient implements Transport over a local serial port.
type RTUClient struct {
	handler *modbus.RTUClientHandler
	client  modbus.Client
}

// NewRTUClient opens the serial port.
func NewRTUClient(cfg SerialConfig) (*RTUClient, error) {
	if cfg.Port == "" {
		return nil, errors.New("upstream rtu: port required")
	}

	h := modbus.NewRTUClientHandler(cfg.Port)
	h.BaudRate = cfg.BaudRate
	h.DataBits = cfg.DataBits
	h.Parity = cfg.Parity
	h.StopBits = cfg.StopBits
	h.SlaveId = cfg.SlaveID
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &RTUClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *RTUClient) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, ErrMalformed
	}
	return codec.BytesToRegisters(raw), nil
}

func (c *RTUClient) Close() error {
	return c.handler.Close()
}

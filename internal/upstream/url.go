// internal/upstream/url.go
package upstream

import (
	"errors"
	"time"

	"github.com/simonvetter/modbus"
)

// URLClient implements Transport for meters behind an RS485 gateway,
// addressed as tcp://host:port or rtuovertcp://host:port.
type URLClient struct {
	client *modbus.ModbusClient
}

// NewURLClient connects to url and selects the slave id.
func NewURLClient(url string, slaveID uint8, timeout time.Duration) (*URLClient, error) {
	if url == "" {
		return nil, errors.New("upstream url: url required")
	}

	c, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if err := c.SetUnitId(slaveID); err != nil {
		return nil, err
	}
	if err := c.Open(); err != nil {
		return nil, err
	}

	return &URLClient{client: c}, nil
}

func (c *URLClient) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	return c.client.ReadRegisters(addr, qty, modbus.HOLDING_REGISTER)
}

func (c *URLClient) Close() error {
	return c.client.Close()
}

// internal/upstream/errors.go
package upstream

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goburrow/modbus"
	smodbus "github.com/simonvetter/modbus"
)

var (
	ErrTimeout      = errors.New("upstream: timeout")
	ErrMalformed    = errors.New("upstream: malformed response")
	ErrNotConnected = errors.New("upstream: not connected")
)

// DeviceError is a Modbus exception response from the real meter.
type DeviceError struct {
	Function uint8
	Code     uint8
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("upstream: device exception fc=%d code=%d", e.Function, e.Code)
}

// ModbusCode exposes the exception code for status tracking.
func (e *DeviceError) ModbusCode() uint16 { return uint16(e.Code) }

// classify maps transport library errors onto the upstream taxonomy.
// The library error stays in the chain.
func classify(fc uint8, err error) error {
	if err == nil {
		return nil
	}

	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return fmt.Errorf("%w: %w", &DeviceError{Function: mbErr.FunctionCode &^ 0x80, Code: mbErr.ExceptionCode}, err)
	}

	if code, ok := simonvetterException(err); ok {
		return fmt.Errorf("%w: %w", &DeviceError{Function: fc, Code: code}, err)
	}

	switch {
	case errors.Is(err, smodbus.ErrRequestTimedOut),
		errors.Is(err, os.ErrDeadlineExceeded),
		isTimeout(err):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, smodbus.ErrBadCRC),
		errors.Is(err, smodbus.ErrShortFrame),
		errors.Is(err, smodbus.ErrProtocolError),
		isMalformed(err):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return fmt.Errorf("upstream: %w", err)
}

func simonvetterException(err error) (uint8, bool) {
	switch {
	case errors.Is(err, smodbus.ErrIllegalFunction):
		return 0x01, true
	case errors.Is(err, smodbus.ErrIllegalDataAddress):
		return 0x02, true
	case errors.Is(err, smodbus.ErrIllegalDataValue):
		return 0x03, true
	case errors.Is(err, smodbus.ErrServerDeviceFailure):
		return 0x04, true
	}
	return 0, false
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}

// goburrow reports framing problems as plain "modbus: ..." errors.
func isMalformed(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "crc") ||
		strings.Contains(msg, "does not match") ||
		strings.Contains(msg, "length")
}

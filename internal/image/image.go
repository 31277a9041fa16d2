// internal/image/image.go
package image

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/codec"
)

var (
	ErrOutOfRange      = errors.New("image: address range out of bounds")
	ErrHeaderProtected = errors.New("image: header block is read-only")
)

// Image is the register space of one emulated meter.
// Safe for concurrent use; every Write/Read is atomic with respect to the others.
type Image struct {
	mu    sync.RWMutex
	words []uint16
}

// New creates an image with the identification header already in place.
func New(deviceID uint8) *Image {
	img := &Image{words: make([]uint16, Size)}
	img.setHeader(deviceID)
	return img
}

// setHeader writes the fixed identification block. Called once from New.
func (img *Image) setHeader(deviceID uint8) {
	copy(img.words[HeaderAddress:], EncodeHeader(deviceID))
}

// Write stores words at addr.
// The header block is never overwritten by runtime updates.
func (img *Image) Write(addr uint16, words []uint16) error {
	end := int(addr) + len(words)
	if end > Size {
		return fmt.Errorf("%w: write 0x%04X+%d (size 0x%04X)", ErrOutOfRange, addr, len(words), Size)
	}
	if len(words) > 0 && int(addr) < HeaderAddress+HeaderWords {
		return fmt.Errorf("%w: write 0x%04X+%d", ErrHeaderProtected, addr, len(words))
	}

	img.mu.Lock()
	copy(img.words[addr:end], words)
	img.mu.Unlock()
	return nil
}

// Read returns a copy of count words starting at addr.
// Addresses are not checked against the catalog: whatever is stored is returned.
func (img *Image) Read(addr uint16, count uint16) ([]uint16, error) {
	end := int(addr) + int(count)
	if end > Size {
		return nil, fmt.Errorf("%w: read 0x%04X+%d (size 0x%04X)", ErrOutOfRange, addr, count, Size)
	}

	out := make([]uint16, count)

	img.mu.RLock()
	copy(out, img.words[addr:end])
	img.mu.RUnlock()
	return out, nil
}

// SetClock writes second, minute, hour, day, month, year at ClockAddress.
func (img *Image) SetClock(t time.Time) {
	regs := EncodeClock(t)

	img.mu.Lock()
	copy(img.words[ClockAddress:ClockAddress+ClockWords], regs)
	img.mu.Unlock()
}

// SetValue encodes a physical value for spec and stores it.
func (img *Image) SetValue(s catalog.MeasurementSpec, v float64) error {
	return img.Write(s.Address, codec.Encode(v, s).Words())
}

// Value decodes the physical value currently stored for spec.
func (img *Image) Value(s catalog.MeasurementSpec) (float64, error) {
	regs, err := img.Read(s.Address, uint16(s.Words))
	if err != nil {
		return 0, err
	}
	return codec.DecodeWords(regs, s)
}

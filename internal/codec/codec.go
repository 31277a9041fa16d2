// internal/codec/codec.go
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
)

// Order names a byte or word order.
type Order uint8

const (
	BigEndian Order = iota
	LittleEndian
)

// Wire layout of the DTSU666. Fixed, independent of host endianness.
const (
	ByteOrder = BigEndian // within a register
	WordOrder = BigEndian // high word at the lower address
)

// RegisterPair is one binary32 value spread over two registers.
type RegisterPair [2]uint16

var ErrShortRead = errors.New("codec: short register slice")

// Encode converts a physical value into the meter's raw register pair.
func Encode(v float64, s catalog.MeasurementSpec) RegisterPair {
	raw := float32(v / s.Scale)
	return packFloat32(raw)
}

// Decode converts a raw register pair back to the physical value.
func Decode(p RegisterPair, s catalog.MeasurementSpec) float64 {
	return float64(unpackFloat32(p)) * s.Scale
}

// DecodeWords decodes the first two words of regs.
func DecodeWords(regs []uint16, s catalog.MeasurementSpec) (float64, error) {
	if len(regs) < int(s.Words) || s.Words != catalog.WordsPerValue {
		return 0, fmt.Errorf("%w: have %d want %d", ErrShortRead, len(regs), s.Words)
	}
	return Decode(RegisterPair{regs[0], regs[1]}, s), nil
}

// Words returns the pair as a slice.
func (p RegisterPair) Words() []uint16 {
	return []uint16{p[0], p[1]}
}

// Bytes returns the four wire bytes of the pair.
func (p RegisterPair) Bytes() []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint16(b[0:2], p[0])
	binary.BigEndian.PutUint16(b[2:4], p[1])
	return b
}

func packFloat32(f float32) RegisterPair {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(f))

	hi := wordFromBytes(b[0], b[1])
	lo := wordFromBytes(b[2], b[3])

	if WordOrder == LittleEndian {
		return RegisterPair{lo, hi}
	}
	return RegisterPair{hi, lo}
}

func unpackFloat32(p RegisterPair) float32 {
	hi, lo := p[0], p[1]
	if WordOrder == LittleEndian {
		hi, lo = lo, hi
	}

	var b [4]byte
	b[0], b[1] = bytesFromWord(hi)
	b[2], b[3] = bytesFromWord(lo)

	return math.Float32frombits(binary.BigEndian.Uint32(b[:]))
}

func wordFromBytes(first, second byte) uint16 {
	if ByteOrder == LittleEndian {
		return uint16(second)<<8 | uint16(first)
	}
	return uint16(first)<<8 | uint16(second)
}

func bytesFromWord(w uint16) (byte, byte) {
	if ByteOrder == LittleEndian {
		return byte(w), byte(w >> 8)
	}
	return byte(w >> 8), byte(w)
}

// ---- register <-> byte helpers (wire geometry) ----

// RegistersToBytes packs registers big-endian, as they appear in an FC3 response.
func RegistersToBytes(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

// BytesToRegisters unpacks big-endian register bytes. A trailing odd byte is ignored.
func BytesToRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}

// internal/codec/codec_test.go
package codec

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
)

func mustSpec(t *testing.T, name string) catalog.MeasurementSpec {
	t.Helper()
	s, ok := catalog.Default.ByName(name)
	require.Truef(t, ok, "missing spec %s", name)
	return s
}

func TestOrderConstants(t *testing.T) {
	assert.Equal(t, BigEndian, ByteOrder)
	assert.Equal(t, BigEndian, WordOrder)
}

func TestEncode_VoltageByteOrder(t *testing.T) {
	s := mustSpec(t, catalog.VoltagePhaseA)

	p := Encode(230.0, s)

	// 2300.0 as binary32 = 0x450FC000
	assert.Equal(t, RegisterPair{0x450F, 0xC000}, p)

	want := make([]byte, 4)
	bits := math.Float32bits(2300.0)
	want[0], want[1], want[2], want[3] = byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits)
	assert.Equal(t, want, p.Bytes())
}

func TestDecode_Voltage(t *testing.T) {
	s := mustSpec(t, catalog.VoltagePhaseA)
	assert.InDelta(t, 230.0, Decode(RegisterPair{0x450F, 0xC000}, s), 1e-9)
}

func TestRoundTrip(t *testing.T) {
	values := []float64{0, 1, -1, 0.339, 231.0, 403.6, -76.7, 0.094, 49.98, 12345.6, -27.5}

	for _, s := range catalog.Default.Specs() {
		for _, v := range values {
			got := Decode(Encode(v, s), s)
			if v == 0 {
				assert.Equal(t, 0.0, got)
				continue
			}
			rel := math.Abs(got-v) / math.Abs(v)
			assert.LessOrEqualf(t, rel, 1e-5, "%s: %v -> %v", s.Name, v, got)
		}
	}
}

func TestDecodeWords_Short(t *testing.T) {
	s := mustSpec(t, catalog.Frequency)

	_, err := DecodeWords([]uint16{0x4000}, s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortRead))

	v, err := DecodeWords(Encode(50.0, s).Words(), s)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, v, 1e-4)
}

func TestRegistersBytesGeometry(t *testing.T) {
	regs := []uint16{0x0102, 0xA0B0}
	b := RegistersToBytes(regs)
	assert.Equal(t, []byte{0x01, 0x02, 0xA0, 0xB0}, b)
	assert.Equal(t, regs, BytesToRegisters(b))
	assert.Equal(t, []uint16{0x0102}, BytesToRegisters([]byte{0x01, 0x02, 0x03}))
}

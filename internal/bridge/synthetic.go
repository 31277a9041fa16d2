// internal/bridge/synthetic.go
package bridge

import (
	"fmt"
	"math"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/codec"
	cfg "github.com/tamzrod/dtsu-bridge/internal/config"
)

// unity encodes an already scaled value as a plain float pair.
var unity = catalog.MeasurementSpec{Words: catalog.WordsPerValue, Scale: 1}

// Synthetic serves a register that the real meter does not have, derived from
// one snapshot measurement.
//
// Mode catalog uses the source's own scale (the meter's native raw units).
// Mode fixed multiplies the physical value by Factor (e.g. volts x10, amps x100).
// Words 1 yields a signed 16-bit integer, 2 a big-endian float32 pair.
type Synthetic struct {
	Address uint16
	Source  catalog.MeasurementSpec
	Mode    string
	Factor  float64
	Words   uint8
}

// NewSynthetics resolves configured mappings against the catalog.
// The configuration is expected to be validated and normalized.
func NewSynthetics(c *catalog.Catalog, list []cfg.SyntheticConfig) ([]Synthetic, error) {
	out := make([]Synthetic, 0, len(list))
	for _, sc := range list {
		src, ok := c.ByName(sc.Source)
		if !ok {
			return nil, fmt.Errorf("synthetic 0x%04X: unknown source %q", sc.Address, sc.Source)
		}
		out = append(out, Synthetic{
			Address: sc.Address,
			Source:  src,
			Mode:    sc.Mode,
			Factor:  sc.Factor,
			Words:   sc.Words,
		})
	}
	return out, nil
}

// Covers reports whether addr falls inside this mapping.
func (s Synthetic) Covers(addr uint16) bool {
	return addr >= s.Address && uint32(addr) < uint32(s.Address)+uint32(s.Words)
}

// Registers computes the register words for a physical source value.
func (s Synthetic) Registers(v float64) []uint16 {
	var raw float64
	if s.Mode == cfg.SyntheticModeFixed {
		raw = v * s.Factor
	} else {
		raw = v / s.Source.Scale
	}

	if s.Words == 1 {
		return []uint16{int16Register(raw)}
	}
	return codec.Encode(raw, unity).Words()
}

// int16Register rounds and saturates into a two's complement register.
func int16Register(v float64) uint16 {
	r := math.Round(v)
	switch {
	case math.IsNaN(r):
		return 0
	case r > math.MaxInt16:
		r = math.MaxInt16
	case r < math.MinInt16:
		r = math.MinInt16
	}
	return uint16(int16(r))
}

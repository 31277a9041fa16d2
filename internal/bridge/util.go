// internal/bridge/util.go
package bridge

import (
	"fmt"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/codec"
	"github.com/tamzrod/dtsu-bridge/internal/image"
)

func hex(addr uint16) string { return fmt.Sprintf("0x%04X", addr) }

// fixedEnd is the exclusive end of the header and clock area served from the image.
const fixedEnd = image.ClockAddress + image.ClockWords

// decodeRange decodes every catalog measurement fully contained in
// [addr, addr+len(regs)).
func decodeRange(c *catalog.Catalog, addr uint16, regs []uint16) map[string]float64 {
	out := map[string]float64{}
	end := uint32(addr) + uint32(len(regs))

	for _, s := range c.Specs() {
		if uint32(s.Address) < uint32(addr) || s.End() > end {
			continue
		}
		off := s.Address - addr
		v, err := codec.DecodeWords(regs[off:], s)
		if err != nil {
			continue
		}
		out[s.Name] = v
	}
	return out
}

// touchesKnown reports whether any word of the range belongs to the catalog
// or to the header and clock block.
func touchesKnown(c *catalog.Catalog, addr, count uint16) bool {
	for i := uint32(0); i < uint32(count); i++ {
		a := uint32(addr) + i
		if a > 0xFFFF {
			return false
		}
		if a < fixedEnd {
			return true
		}
		if _, ok := c.Covering(uint16(a)); ok {
			return true
		}
	}
	return false
}

// internal/catalog/catalog.go
package catalog

import (
	"fmt"
	"sort"
)

// WordsPerValue is the register width of every DTSU666 measurement.
const WordsPerValue uint8 = 2

// MeasurementSpec describes one physical quantity exposed by the meter.
// Immutable once built.
type MeasurementSpec struct {
	Name    string
	Address uint16
	Words   uint8
	Scale   float64
}

// End returns the first address after this measurement.
func (s MeasurementSpec) End() uint32 {
	return uint32(s.Address) + uint32(s.Words)
}

// Catalog is the static DTSU666 register table.
type Catalog struct {
	byAddr    map[uint16]MeasurementSpec
	byName    map[string]MeasurementSpec
	ordered   []MeasurementSpec
	fourWire  []uint16
	maxAddrEx uint32
}

// Default is the process-wide DTSU666 catalog.
var Default = mustBuild(dtsu666Table, fourWireNames)

// Lookup returns the spec registered at exactly addr.
func (c *Catalog) Lookup(addr uint16) (MeasurementSpec, bool) {
	s, ok := c.byAddr[addr]
	return s, ok
}

// ByName returns the spec for a measurement name.
func (c *Catalog) ByName(name string) (MeasurementSpec, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// FourWireAddresses returns the polled subset in poll order.
// The returned slice is a copy.
func (c *Catalog) FourWireAddresses() []uint16 {
	out := make([]uint16, len(c.fourWire))
	copy(out, c.fourWire)
	return out
}

// Specs returns all specs ordered by address.
func (c *Catalog) Specs() []MeasurementSpec {
	out := make([]MeasurementSpec, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// MaxAddress returns the highest address+words over all specs (exclusive end).
func (c *Catalog) MaxAddress() uint32 {
	return c.maxAddrEx
}

// Covering returns the spec whose [address, address+words) range contains addr.
func (c *Catalog) Covering(addr uint16) (MeasurementSpec, bool) {
	i := sort.Search(len(c.ordered), func(i int) bool {
		return c.ordered[i].End() > uint32(addr)
	})
	if i < len(c.ordered) && c.ordered[i].Address <= addr {
		return c.ordered[i], true
	}
	return MeasurementSpec{}, false
}

// New builds a catalog from specs and a four-wire name list.
// It fails on duplicate names, overlapping ranges or unknown four-wire names.
func New(specs []MeasurementSpec, fourWire []string) (*Catalog, error) {
	c := &Catalog{
		byAddr: make(map[uint16]MeasurementSpec, len(specs)),
		byName: make(map[string]MeasurementSpec, len(specs)),
	}

	for _, s := range specs {
		if s.Words == 0 {
			return nil, fmt.Errorf("catalog: %s has zero width", s.Name)
		}
		if s.Scale == 0 {
			return nil, fmt.Errorf("catalog: %s has zero scale", s.Name)
		}
		if _, dup := c.byName[s.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate name %s", s.Name)
		}
		if _, dup := c.byAddr[s.Address]; dup {
			return nil, fmt.Errorf("catalog: duplicate address 0x%04X", s.Address)
		}
		c.byAddr[s.Address] = s
		c.byName[s.Name] = s
		c.ordered = append(c.ordered, s)
		if s.End() > c.maxAddrEx {
			c.maxAddrEx = s.End()
		}
	}

	sort.Slice(c.ordered, func(i, j int) bool {
		return c.ordered[i].Address < c.ordered[j].Address
	})

	// ranges are half-open; touching is fine
	for i := 1; i < len(c.ordered); i++ {
		prev, cur := c.ordered[i-1], c.ordered[i]
		if prev.End() > uint32(cur.Address) {
			return nil, fmt.Errorf(
				"catalog: %s [0x%04X,+%d) overlaps %s at 0x%04X",
				prev.Name, prev.Address, prev.Words, cur.Name, cur.Address,
			)
		}
	}

	for _, name := range fourWire {
		s, ok := c.byName[name]
		if !ok {
			return nil, fmt.Errorf("catalog: four-wire entry %s not in table", name)
		}
		c.fourWire = append(c.fourWire, s.Address)
	}

	return c, nil
}

func mustBuild(specs []MeasurementSpec, fourWire []string) *Catalog {
	c, err := New(specs, fourWire)
	if err != nil {
		panic(err)
	}
	return c
}

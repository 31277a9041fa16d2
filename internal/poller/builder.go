// internal/poller/builder.go
package poller

import (
	"sort"
	"time"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/upstream"
)

// MaxReadQuantity is the FC3 protocol limit.
const MaxReadQuantity = 125

// PlanBlocks groups the given addresses into read blocks.
// Only strictly adjacent measurements are merged, so no block spans an
// undocumented gap. maxWords <= WordsPerValue yields one read per measurement.
func PlanBlocks(c *catalog.Catalog, addrs []uint16, maxWords int) []ReadBlock {
	if maxWords > MaxReadQuantity {
		maxWords = MaxReadQuantity
	}

	specs := make([]catalog.MeasurementSpec, 0, len(addrs))
	for _, a := range addrs {
		if s, ok := c.Lookup(a); ok {
			specs = append(specs, s)
		}
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Address < specs[j].Address })

	var blocks []ReadBlock
	for _, s := range specs {
		if n := len(blocks); n > 0 {
			last := &blocks[n-1]
			end := uint32(last.Address) + uint32(last.Quantity)
			if end == uint32(s.Address) && int(last.Quantity)+int(s.Words) <= maxWords {
				last.Quantity += uint16(s.Words)
				last.Specs = append(last.Specs, s)
				continue
			}
		}
		blocks = append(blocks, ReadBlock{
			Address:  s.Address,
			Quantity: uint16(s.Words),
			Specs:    []catalog.MeasurementSpec{s},
		})
	}

	return blocks
}

// Build constructs the four-wire poller over a link.
// No retries, no loops, no semantics.
func Build(name string, interval time.Duration, maxBlockWords int, link upstream.Reader) (*Poller, error) {
	blocks := PlanBlocks(catalog.Default, catalog.Default.FourWireAddresses(), maxBlockWords)

	return New(
		Config{
			Name:     name,
			Interval: interval,
			Blocks:   blocks,
		},
		link,
	)
}

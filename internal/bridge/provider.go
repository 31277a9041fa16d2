// internal/bridge/provider.go
package bridge

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/image"
	"github.com/tamzrod/dtsu-bridge/internal/metrics"
)

// ReadProvider answers one inbound holding-register read.
// It always returns exactly count words and never fails: faults degrade to zeros.
type ReadProvider interface {
	OnRead(ctx context.Context, addr, count uint16) []uint16
}

// Static serves the image as it is. Used by the emulator.
// With Verbose set every read is logged with the measurement it hits.
type Static struct {
	Image   *image.Image
	Catalog *catalog.Catalog
	Verbose bool
	Metrics *metrics.Metrics
	Log     zerolog.Logger
}

func (p *Static) OnRead(_ context.Context, addr, count uint16) []uint16 {
	regs, err := p.Image.Read(addr, count)
	if err != nil {
		p.Log.Debug().Err(err).Msg("read outside image, serving zeros")
		p.Metrics.InboundRead("static", metrics.ResultUnknown)
		return make([]uint16, count)
	}
	p.Metrics.InboundRead("static", metrics.ResultOK)

	if p.Verbose {
		ev := p.Log.Info().
			Str("addr", hex(addr)).
			Uint16("count", count).
			Uints16("words", regs)
		if s, ok := p.Catalog.Covering(addr); ok {
			ev = ev.Str("name", s.Name)
		} else {
			ev = ev.Str("name", "unknown")
		}
		ev.Msg("master read")
	}
	return regs
}

// internal/bridge/ondemand.go
package bridge

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/image"
	"github.com/tamzrod/dtsu-bridge/internal/metrics"
	"github.com/tamzrod/dtsu-bridge/internal/telemetry"
	"github.com/tamzrod/dtsu-bridge/internal/upstream"
)

const strategyOnDemand = "on_demand"

// OnDemand forwards every inbound read to the real meter.
// The inbound caller waits for the upstream round trip, throttle included.
type OnDemand struct {
	link    upstream.Reader
	img     *image.Image
	cat     *catalog.Catalog
	pub     telemetry.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger
}

func (p *OnDemand) OnRead(ctx context.Context, addr, count uint16) []uint16 {
	if !touchesKnown(p.cat, addr, count) {
		p.log.Debug().Str("addr", hex(addr)).Uint16("count", count).Msg("unknown address, serving zeros")
		p.metrics.InboundRead(strategyOnDemand, metrics.ResultUnknown)
		return make([]uint16, count)
	}

	regs, err := p.link.ReadHoldingRegisters(ctx, addr, count)
	if err != nil {
		p.log.Warn().Err(err).Str("addr", hex(addr)).Uint16("count", count).Msg("upstream read failed, serving zeros")
		p.metrics.InboundRead(strategyOnDemand, metrics.ResultFallback)
		return make([]uint16, count)
	}

	if err := p.img.Write(addr, regs); err != nil && !errors.Is(err, image.ErrHeaderProtected) {
		p.log.Debug().Err(err).Msg("image mirror skipped")
	}

	rec := telemetry.Record{
		Key:       "read/" + strconv.Itoa(int(addr)),
		Timestamp: p.now(),
		Address:   addr,
		Values:    regs,
	}
	if m := decodeRange(p.cat, addr, regs); len(m) > 0 {
		rec.Measurements = m
		for name, v := range m {
			p.metrics.Measurement(name, v)
		}
	}
	if s, ok := p.cat.Lookup(addr); ok && count == uint16(s.Words) {
		rec.Name = s.Name
		rec.Value = telemetry.Float(rec.Measurements[s.Name])
	}
	p.pub.Publish(rec)

	p.metrics.InboundRead(strategyOnDemand, metrics.ResultOK)
	return regs
}

// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/dtsu-bridge/internal/codec"
	"github.com/tamzrod/dtsu-bridge/internal/upstream"
)

// Config is the minimal runtime config the poller needs.
type Config struct {
	Name     string
	Interval time.Duration
	Blocks   []ReadBlock
}

// Poller is a clock-driven reader of the measurement set.
type Poller struct {
	cfg    Config
	client upstream.Reader
	now    func() time.Time
}

// New creates a poller with immutable config.
func New(cfg Config, client upstream.Reader) (*Poller, error) {
	if cfg.Name == "" {
		return nil, errors.New("poller: name required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Blocks) == 0 {
		return nil, errors.New("poller: at least one read block required")
	}
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	return &Poller{cfg: cfg, client: client, now: time.Now}, nil
}

// Blocks returns the read plan.
func (p *Poller) Blocks() []ReadBlock {
	return p.cfg.Blocks
}

// PollOnce performs exactly one poll cycle.
// A failed block does not abort the cycle; its measurements are simply absent.
func (p *Poller) PollOnce(ctx context.Context) PollResult {
	res := PollResult{At: p.now()}

	for _, rb := range p.cfg.Blocks {
		if ctx.Err() != nil {
			res.Failed = append(res.Failed, BlockError{Block: rb, Err: ctx.Err()})
			continue
		}

		regs, err := p.client.ReadHoldingRegisters(ctx, rb.Address, rb.Quantity)
		if err != nil {
			res.Failed = append(res.Failed, BlockError{Block: rb, Err: err})
			continue
		}
		if len(regs) < int(rb.Quantity) {
			res.Failed = append(res.Failed, BlockError{Block: rb, Err: codec.ErrShortRead})
			continue
		}

		at := p.now()
		for _, s := range rb.Specs {
			off := int(s.Address - rb.Address)
			words := regs[off : off+int(s.Words)]

			v, err := codec.DecodeWords(words, s)
			if err != nil {
				res.Failed = append(res.Failed, BlockError{Block: rb, Err: err})
				continue
			}

			w := make([]uint16, len(words))
			copy(w, words)
			res.Readings = append(res.Readings, Reading{Spec: s, Value: v, Words: w, At: at})
		}
	}

	res.Duration = p.now().Sub(res.At)
	return res
}

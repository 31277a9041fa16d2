// internal/upstream/link.go
package upstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FuncReadHoldingRegisters is the only function code the bridge issues.
const FuncReadHoldingRegisters uint8 = 3

// Reader is what the bridge and the poller need from the real meter.
type Reader interface {
	ReadHoldingRegisters(ctx context.Context, addr, qty uint16) ([]uint16, error)
}

// Transport is one opened connection to the meter.
// Implementations are not required to be safe for concurrent use.
type Transport interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error)
	Close() error
}

// Factory opens a new Transport. ONE attempt per call.
type Factory func() (Transport, error)

// Observer is told the outcome of every request, throttle wait included.
type Observer func(d time.Duration, err error)

// Link serializes requests to one meter and spaces them with a Throttle.
// A dead transport is discarded and reopened through the factory on the next request.
type Link struct {
	mu       sync.Mutex
	factory  Factory
	tr       Transport
	throttle *Throttle
	observe  Observer
	log      zerolog.Logger
}

// NewLink builds a link. The transport is opened lazily unless Open is called.
func NewLink(factory Factory, throttle *Throttle, log zerolog.Logger) *Link {
	return &Link{
		factory:  factory,
		throttle: throttle,
		log:      log.With().Str("component", "upstream").Logger(),
	}
}

// SetObserver installs the request hook. Call before the first request.
func (l *Link) SetObserver(o Observer) {
	l.mu.Lock()
	l.observe = o
	l.mu.Unlock()
}

// Open connects immediately. Used at startup to fail fast.
func (l *Link) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureOpenLocked()
}

func (l *Link) ensureOpenLocked() error {
	if l.tr != nil {
		return nil
	}
	if l.factory == nil {
		return ErrNotConnected
	}
	tr, err := l.factory()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	l.tr = tr
	l.log.Info().Msg("upstream link open")
	return nil
}

// ReadHoldingRegisters performs one throttled FC3 read.
// Only one request is outstanding per link.
func (l *Link) ReadHoldingRegisters(ctx context.Context, addr, qty uint16) ([]uint16, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	regs, err := l.readLocked(ctx, addr, qty)
	if l.observe != nil && ctx.Err() == nil {
		l.observe(time.Since(start), err)
	}
	return regs, err
}

func (l *Link) readLocked(ctx context.Context, addr, qty uint16) ([]uint16, error) {
	if err := l.ensureOpenLocked(); err != nil {
		return nil, err
	}

	if err := l.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	regs, err := l.tr.ReadHoldingRegisters(addr, qty)
	l.throttle.Done()
	if err != nil {
		err = classify(FuncReadHoldingRegisters, err)
		if !errors.Is(err, ErrTimeout) && !isDevice(err) {
			// transport death: drop it, reopen on a future request
			l.dropLocked()
		}
		return nil, err
	}

	if len(regs) != int(qty) {
		return nil, fmt.Errorf("%w: got %d registers want %d", ErrMalformed, len(regs), qty)
	}

	return regs, nil
}

// Close releases the transport.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tr == nil {
		return nil
	}
	err := l.tr.Close()
	l.tr = nil
	return err
}

func (l *Link) dropLocked() {
	if l.tr == nil {
		return
	}
	if err := l.tr.Close(); err != nil {
		l.log.Debug().Err(err).Msg("close after transport error")
	}
	l.tr = nil
}

// ErrorKind returns a short label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case isDevice(err):
		return "device"
	default:
		return "transport"
	}
}

func isDevice(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

// internal/slave/slave.go
package slave

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/serial"
	"github.com/rs/zerolog"
	"github.com/tbrandon/mbserver"

	cfg "github.com/tamzrod/dtsu-bridge/internal/config"
)

const (
	fcReadHoldingRegisters   = 3
	fcWriteSingleCoil        = 5
	fcWriteSingleRegister    = 6
	fcWriteMultipleCoils     = 15
	fcWriteMultipleRegisters = 16

	maxReadQuantity = 125

	closeWait = 2 * time.Second
)

// Provider answers holding-register reads.
type Provider interface {
	OnRead(ctx context.Context, addr, count uint16) []uint16
}

// Server is the downstream RTU slave the master talks to.
// Requests are handled one at a time, in arrival order.
type Server struct {
	srv      *mbserver.Server
	provider Provider
	slaveID  uint8
	ctx      context.Context
	log      zerolog.Logger
}

// New registers the handlers. Nothing is opened until Serve.
func New(p Provider, slaveID uint8, log zerolog.Logger) *Server {
	s := &Server{
		srv:      mbserver.NewServer(),
		provider: p,
		slaveID:  slaveID,
		ctx:      context.Background(),
		log:      log.With().Str("component", "slave").Logger(),
	}

	s.srv.RegisterFunctionHandler(fcReadHoldingRegisters, s.readHoldingRegisters)
	for _, fc := range []uint8{fcWriteSingleCoil, fcWriteSingleRegister, fcWriteMultipleCoils, fcWriteMultipleRegisters} {
		s.srv.RegisterFunctionHandler(fc, s.readOnly)
	}

	return s
}

// SerialConfig maps the downstream settings onto the serial driver.
// Reads block: the accept loop ends on the first read error, so an idle
// line must never surface as a timeout.
func SerialConfig(d cfg.DownstreamConfig) *serial.Config {
	return &serial.Config{
		Address:  d.Port,
		BaudRate: d.BaudRate,
		DataBits: d.DataBits,
		StopBits: d.StopBits,
		Parity:   d.Parity,
		Timeout:  0,
	}
}

// Serve opens the port and answers requests until ctx is done.
// Failing to open the port is returned immediately.
func (s *Server) Serve(ctx context.Context, d cfg.DownstreamConfig) error {
	s.ctx = ctx
	sc := SerialConfig(d)

	// ListenRTU exits the process when the port cannot be opened.
	port, err := serial.Open(sc)
	if err != nil {
		return fmt.Errorf("downstream %s: %w", d.Port, err)
	}
	port.Close()

	if err := s.srv.ListenRTU(sc); err != nil {
		return fmt.Errorf("downstream %s: %w", d.Port, err)
	}
	s.log.Info().
		Str("port", d.Port).
		Int("baud", d.BaudRate).
		Uint8("slave_id", s.slaveID).
		Msg("downstream slave listening")

	<-ctx.Done()

	// Close waits for the blocked reader, which only returns once a byte arrives.
	done := make(chan struct{})
	go func() {
		s.srv.Close()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info().Msg("downstream slave stopped")
	case <-time.After(closeWait):
		s.log.Warn().Dur("waited", closeWait).Msg("downstream port still busy, leaving it to process exit")
	}
	return nil
}

// ------------------------------------------------------------
// HANDLERS
// ------------------------------------------------------------

func (s *Server) readHoldingRegisters(_ *mbserver.Server, f mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := f.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}

	addr := binary.BigEndian.Uint16(data[0:2])
	qty := binary.BigEndian.Uint16(data[2:4])

	if qty == 0 || qty > maxReadQuantity {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if uint32(addr)+uint32(qty) > 0x10000 {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	if rf, ok := f.(*mbserver.RTUFrame); ok && rf.Address != s.slaveID {
		s.log.Debug().Uint8("unit", rf.Address).Uint8("slave_id", s.slaveID).Msg("request for another unit id")
	}

	regs := s.provider.OnRead(s.ctx, addr, qty)

	out := make([]byte, 1+2*int(qty))
	out[0] = byte(2 * qty)
	for i := 0; i < int(qty) && i < len(regs); i++ {
		binary.BigEndian.PutUint16(out[1+2*i:], regs[i])
	}
	return out, &mbserver.Success
}

func (s *Server) readOnly(_ *mbserver.Server, f mbserver.Framer) ([]byte, *mbserver.Exception) {
	s.log.Debug().Uint8("fc", f.GetFunction()).Msg("write rejected")
	return []byte{}, &mbserver.IllegalFunction
}

// internal/upstream/link_test.go
package upstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fake clock ----

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After advances the fake time immediately.
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// ---- fake transport ----

type fakeTransport struct {
	clock  *fakeClock
	cost   time.Duration // time spent on the wire per request
	starts []time.Time
	ends   []time.Time
	err    error
	closed int
}

func (f *fakeTransport) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	f.starts = append(f.starts, f.clock.Now())
	f.clock.Advance(f.cost)
	f.ends = append(f.ends, f.clock.Now())
	if f.err != nil {
		return nil, f.err
	}
	return make([]uint16, qty), nil
}

func (f *fakeTransport) Close() error {
	f.closed++
	return nil
}

func newTestLink(tr *fakeTransport, interval time.Duration) (*Link, *int) {
	opens := 0
	factory := func() (Transport, error) {
		opens++
		return tr, nil
	}
	return NewLink(factory, NewThrottle(interval, tr.clock), zerolog.Nop()), &opens
}

// ---- tests ----

func TestThrottle_SpacesConsecutiveRequests(t *testing.T) {
	clock := newFakeClock()
	tr := &fakeTransport{clock: clock}
	link, _ := newTestLink(tr, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := link.ReadHoldingRegisters(ctx, 0x2006, 2)
		require.NoError(t, err)
		clock.Advance(200 * time.Millisecond) // processing time
	}

	require.Len(t, tr.starts, 3)
	for i := 1; i < len(tr.starts); i++ {
		gap := tr.starts[i].Sub(tr.starts[i-1])
		assert.GreaterOrEqualf(t, gap, time.Second, "request %d started %v after previous", i, gap)
	}
}

func TestThrottle_GapMeasuredFromCompletion(t *testing.T) {
	clock := newFakeClock()
	tr := &fakeTransport{clock: clock, cost: 950 * time.Millisecond}
	link, _ := newTestLink(tr, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := link.ReadHoldingRegisters(ctx, 0x2006, 2)
		require.NoError(t, err)
	}

	require.Len(t, tr.starts, 3)
	for i := 1; i < len(tr.starts); i++ {
		gap := tr.starts[i].Sub(tr.ends[i-1])
		assert.GreaterOrEqualf(t, gap, time.Second, "request %d started %v after previous ended", i, gap)
	}
}

func TestThrottle_GapAfterFailedRequest(t *testing.T) {
	clock := newFakeClock()
	tr := &fakeTransport{clock: clock, cost: time.Second, err: errors.New("serial: timeout")}
	link, _ := newTestLink(tr, time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := link.ReadHoldingRegisters(ctx, 0x2006, 2)
		require.Error(t, err)
	}

	require.Len(t, tr.starts, 2)
	assert.GreaterOrEqual(t, tr.starts[1].Sub(tr.ends[0]), time.Second)
}

func TestThrottle_NoWaitWhenIdleLongEnough(t *testing.T) {
	clock := newFakeClock()
	th := NewThrottle(time.Second, clock)
	ctx := context.Background()

	require.NoError(t, th.Wait(ctx))
	first := clock.Now()

	clock.Advance(5 * time.Second)
	require.NoError(t, th.Wait(ctx))

	assert.Equal(t, first.Add(5*time.Second), clock.Now(), "no extra delay expected")
}

func TestThrottle_ContextCancelled(t *testing.T) {
	th := NewThrottle(time.Hour, nil)
	require.NoError(t, th.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := th.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLink_OpensLazilyOnce(t *testing.T) {
	clock := newFakeClock()
	tr := &fakeTransport{clock: clock}
	link, opens := newTestLink(tr, 0)

	_, err := link.ReadHoldingRegisters(context.Background(), 0, 1)
	require.NoError(t, err)
	_, err = link.ReadHoldingRegisters(context.Background(), 0, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, *opens)
}

func TestLink_TimeoutKeepsTransport(t *testing.T) {
	clock := newFakeClock()
	tr := &fakeTransport{clock: clock, err: errors.New("serial: timeout")}
	link, opens := newTestLink(tr, 0)

	_, err := link.ReadHoldingRegisters(context.Background(), 0x2006, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 0, tr.closed)

	_, _ = link.ReadHoldingRegisters(context.Background(), 0x2006, 2)
	assert.Equal(t, 1, *opens)
}

func TestLink_DeviceExceptionClassified(t *testing.T) {
	clock := newFakeClock()
	tr := &fakeTransport{clock: clock, err: &modbus.ModbusError{FunctionCode: 0x83, ExceptionCode: 2}}
	link, _ := newTestLink(tr, 0)

	_, err := link.ReadHoldingRegisters(context.Background(), 0x9999, 2)
	require.Error(t, err)

	var de *DeviceError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, uint8(3), de.Function)
	assert.Equal(t, uint8(2), de.Code)
	assert.Equal(t, 0, tr.closed)
}

func TestLink_TransportDeathReopens(t *testing.T) {
	clock := newFakeClock()
	tr := &fakeTransport{clock: clock, err: errors.New("write /dev/ttyUSB0: input/output error")}
	link, opens := newTestLink(tr, 0)

	_, err := link.ReadHoldingRegisters(context.Background(), 0x2006, 2)
	require.Error(t, err)
	assert.Equal(t, 1, tr.closed)

	tr.err = nil
	_, err = link.ReadHoldingRegisters(context.Background(), 0x2006, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, *opens)
}

func TestLink_OpenFailure(t *testing.T) {
	link := NewLink(func() (Transport, error) {
		return nil, errors.New("no such device")
	}, NewThrottle(0, nil), zerolog.Nop())

	err := link.Open()
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = link.ReadHoldingRegisters(context.Background(), 0, 2)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestLink_ObserverSeesEveryOutcome(t *testing.T) {
	clock := newFakeClock()
	tr := &fakeTransport{clock: clock}
	link, _ := newTestLink(tr, 0)

	var kinds []string
	link.SetObserver(func(_ time.Duration, err error) {
		kinds = append(kinds, ErrorKind(err))
	})

	_, err := link.ReadHoldingRegisters(context.Background(), 0x2006, 2)
	require.NoError(t, err)

	tr.err = &modbus.ModbusError{FunctionCode: 0x83, ExceptionCode: 2}
	_, err = link.ReadHoldingRegisters(context.Background(), 0x2006, 2)
	require.Error(t, err)

	assert.Equal(t, []string{"", "device"}, kinds)
}

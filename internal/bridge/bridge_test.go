// internal/bridge/bridge_test.go
package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
	"github.com/tamzrod/dtsu-bridge/internal/codec"
	cfg "github.com/tamzrod/dtsu-bridge/internal/config"
	"github.com/tamzrod/dtsu-bridge/internal/image"
	"github.com/tamzrod/dtsu-bridge/internal/poller"
	"github.com/tamzrod/dtsu-bridge/internal/status"
	"github.com/tamzrod/dtsu-bridge/internal/telemetry"
	"github.com/tamzrod/dtsu-bridge/internal/upstream"
)

// ---- fakes ----

type fakeLink struct {
	mu    sync.Mutex
	regs  map[uint16][]uint16
	err   error
	calls int
}

func (f *fakeLink) ReadHoldingRegisters(_ context.Context, addr, qty uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]uint16, qty)
	copy(out, f.regs[addr])
	return out, nil
}

type fakePublisher struct {
	mu   sync.Mutex
	recs []telemetry.Record
}

func (p *fakePublisher) Publish(r telemetry.Record) {
	p.mu.Lock()
	p.recs = append(p.recs, r)
	p.mu.Unlock()
}

func (p *fakePublisher) records() []telemetry.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]telemetry.Record(nil), p.recs...)
}

func spec(t *testing.T, name string) catalog.MeasurementSpec {
	t.Helper()
	s, ok := catalog.Default.ByName(name)
	require.True(t, ok, name)
	return s
}

func newBridge(t *testing.T, strategy string, link upstream.Reader, pub telemetry.Publisher, synth []Synthetic) *Bridge {
	t.Helper()
	b, err := New(Options{
		Strategy:  strategy,
		Image:     image.New(1),
		Link:      link,
		Publisher: pub,
		Synthetic: synth,
		Log:       zerolog.Nop(),
	})
	require.NoError(t, err)
	return b
}

func reading(s catalog.MeasurementSpec, v float64) poller.Reading {
	return poller.Reading{Spec: s, Value: v, Words: codec.Encode(v, s).Words(), At: time.Now()}
}

func decode(t *testing.T, words []uint16, s catalog.MeasurementSpec) float64 {
	t.Helper()
	v, err := codec.DecodeWords(words, s)
	require.NoError(t, err)
	return v
}

// ---- on demand ----

func TestOnDemand_ForwardsAndPublishesOnce(t *testing.T) {
	va := spec(t, catalog.VoltagePhaseA)
	words := codec.Encode(231.0, va).Words()

	link := &fakeLink{regs: map[uint16][]uint16{0x2006: words}}
	pub := &fakePublisher{}
	b := newBridge(t, cfg.StrategyOnDemand, link, pub, nil)

	got := b.Provider().OnRead(context.Background(), 0x2006, 2)
	assert.Equal(t, words, got)
	assert.Equal(t, 1, link.calls)

	recs := pub.records()
	require.Len(t, recs, 1)
	assert.Equal(t, "read/8198", recs[0].Key)
	assert.Equal(t, catalog.VoltagePhaseA, recs[0].Name)
	require.NotNil(t, recs[0].Value)
	assert.InDelta(t, 231.0, *recs[0].Value, 1e-3)
	assert.Equal(t, words, recs[0].Values)

	mirrored, err := b.img.Read(0x2006, 2)
	require.NoError(t, err)
	assert.Equal(t, words, mirrored)
}

func TestOnDemand_TimeoutServesZerosWithoutPublish(t *testing.T) {
	link := &fakeLink{err: upstream.ErrTimeout}
	pub := &fakePublisher{}
	b := newBridge(t, cfg.StrategyOnDemand, link, pub, nil)

	got := b.Provider().OnRead(context.Background(), 0x2006, 2)
	assert.Equal(t, []uint16{0, 0}, got)
	assert.Empty(t, pub.records())
}

func TestOnDemand_UnknownAddressSkipsUpstream(t *testing.T) {
	link := &fakeLink{}
	pub := &fakePublisher{}
	b := newBridge(t, cfg.StrategyOnDemand, link, pub, nil)

	got := b.Provider().OnRead(context.Background(), 0x3000, 4)
	assert.Equal(t, make([]uint16, 4), got)
	assert.Zero(t, link.calls)
	assert.Empty(t, pub.records())
}

func TestOnDemand_BlockReadPublishesMeasurements(t *testing.T) {
	va, vb := spec(t, catalog.VoltagePhaseA), spec(t, catalog.VoltagePhaseB)
	words := append(codec.Encode(231.0, va).Words(), codec.Encode(235.1, vb).Words()...)

	link := &fakeLink{regs: map[uint16][]uint16{0x2006: words}}
	pub := &fakePublisher{}
	b := newBridge(t, cfg.StrategyOnDemand, link, pub, nil)

	b.Provider().OnRead(context.Background(), 0x2006, 4)

	recs := pub.records()
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].Name)
	assert.Nil(t, recs[0].Value)
	assert.InDelta(t, 231.0, recs[0].Measurements[catalog.VoltagePhaseA], 1e-3)
	assert.InDelta(t, 235.1, recs[0].Measurements[catalog.VoltagePhaseB], 1e-3)
}

// ---- cache and serve ----

func TestCache_StalenessAndSwap(t *testing.T) {
	ab := spec(t, catalog.VoltagePhaseAB)
	link := &fakeLink{}
	b := newBridge(t, cfg.StrategyCacheAndServe, link, &fakePublisher{}, nil)
	p := b.Provider()

	b.Apply(poller.PollResult{At: time.Now(), Readings: []poller.Reading{reading(ab, 403.6)}})

	first := p.OnRead(context.Background(), ab.Address, 2)
	assert.InDelta(t, 403.6, decode(t, first, ab), 1e-3)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.OnRead(context.Background(), ab.Address, 2))
	}
	assert.Zero(t, link.calls, "cache-and-serve must not touch the upstream link")

	b.Apply(poller.PollResult{At: time.Now(), Readings: []poller.Reading{reading(ab, 410.2)}})
	assert.InDelta(t, 410.2, decode(t, p.OnRead(context.Background(), ab.Address, 2), ab), 1e-3)
}

func TestCache_ReadsNeverMixSnapshots(t *testing.T) {
	ab, bc := spec(t, catalog.VoltagePhaseAB), spec(t, catalog.VoltagePhaseBC)
	b := newBridge(t, cfg.StrategyCacheAndServe, &fakeLink{}, telemetry.Nop{}, nil)
	p := b.Provider()

	apply := func(v float64) {
		b.Apply(poller.PollResult{At: time.Now(), Readings: []poller.Reading{reading(ab, v), reading(bc, v)}})
	}
	apply(1)

	var stop atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for v := 2.0; !stop.Load(); v++ {
			apply(v)
		}
	}()

	for i := 0; i < 2000; i++ {
		w := p.OnRead(context.Background(), ab.Address, 4)
		x, y := decode(t, w[:2], ab), decode(t, w[2:], bc)
		if x != y {
			stop.Store(true)
			wg.Wait()
			t.Fatalf("mixed snapshot: AB=%v BC=%v", x, y)
		}
	}
	stop.Store(true)
	wg.Wait()
}

func TestCache_FailedBlockKeepsLastGood(t *testing.T) {
	va := spec(t, catalog.VoltagePhaseA)
	b := newBridge(t, cfg.StrategyCacheAndServe, &fakeLink{}, &fakePublisher{}, nil)

	b.Apply(poller.PollResult{At: time.Now(), Readings: []poller.Reading{reading(va, 231.0)}})
	b.Apply(poller.PollResult{
		At:     time.Now(),
		Failed: []poller.BlockError{{Block: poller.ReadBlock{Address: va.Address, Quantity: 2}, Err: upstream.ErrTimeout}},
	})

	got := b.Provider().OnRead(context.Background(), va.Address, 2)
	assert.InDelta(t, 231.0, decode(t, got, va), 1e-3)
}

func TestCache_ApplyMirrorsAndPublishesByName(t *testing.T) {
	f := spec(t, catalog.Frequency)
	pub := &fakePublisher{}
	b := newBridge(t, cfg.StrategyCacheAndServe, &fakeLink{}, pub, nil)

	b.Apply(poller.PollResult{At: time.Now(), Readings: []poller.Reading{reading(f, 50.01)}})

	v, err := b.img.Value(f)
	require.NoError(t, err)
	assert.InDelta(t, 50.01, v, 1e-4)

	recs := pub.records()
	require.Len(t, recs, 1)
	assert.Equal(t, catalog.Frequency, recs[0].Key)
	assert.InDelta(t, 50.01, *recs[0].Value, 1e-9)
}

func TestCache_UnknownAndFixedAddresses(t *testing.T) {
	b := newBridge(t, cfg.StrategyCacheAndServe, &fakeLink{}, &fakePublisher{}, nil)
	p := b.Provider()

	assert.Equal(t, make([]uint16, 3), p.OnRead(context.Background(), 0x3000, 3))

	// nothing polled yet: known catalog addresses are zero too
	assert.Equal(t, []uint16{0, 0}, p.OnRead(context.Background(), 0x2006, 2))

	hdr := p.OnRead(context.Background(), image.HeaderAddress, image.HeaderWords)
	assert.Equal(t, image.EncodeHeader(1), hdr)
}

func TestCache_SyntheticMappings(t *testing.T) {
	va := spec(t, catalog.VoltagePhaseA)
	ia := spec(t, catalog.CurrentPhaseA)
	qa := spec(t, catalog.ReactivePowerPhaseA)

	synth, err := NewSynthetics(catalog.Default, []cfg.SyntheticConfig{
		{Address: 0x0100, Source: catalog.VoltagePhaseA, Mode: cfg.SyntheticModeFixed, Factor: 10, Words: 1},
		{Address: 0x0101, Source: catalog.CurrentPhaseA, Mode: cfg.SyntheticModeFixed, Factor: 100, Words: 1},
		{Address: 0x0102, Source: catalog.ReactivePowerPhaseA, Mode: cfg.SyntheticModeFixed, Factor: 10, Words: 1},
		{Address: 0x0110, Source: catalog.VoltagePhaseA, Mode: cfg.SyntheticModeCatalog, Words: 2},
		{Address: 0x0112, Source: catalog.CurrentPhaseA, Mode: cfg.SyntheticModeCatalog, Words: 1},
	})
	require.NoError(t, err)

	b := newBridge(t, cfg.StrategyCacheAndServe, &fakeLink{}, &fakePublisher{}, synth)
	b.Apply(poller.PollResult{At: time.Now(), Readings: []poller.Reading{
		reading(va, 231.0), reading(ia, 0.339), reading(qa, -76.7),
	}})
	p := b.Provider()

	fixed := p.OnRead(context.Background(), 0x0100, 3)
	assert.Equal(t, uint16(2310), fixed[0])
	assert.Equal(t, uint16(34), fixed[1])
	assert.Equal(t, int16(-767), int16(fixed[2]))

	cat := p.OnRead(context.Background(), 0x0110, 3)
	assert.Equal(t, codec.Encode(231.0, va).Words(), cat[:2])
	assert.Equal(t, uint16(339), cat[2])
}

func TestSynthetic_Saturates(t *testing.T) {
	s := Synthetic{Mode: cfg.SyntheticModeFixed, Factor: 1000, Words: 1}
	assert.Equal(t, int16(32767), int16(s.Registers(400)[0]))
	assert.Equal(t, int16(-32768), int16(s.Registers(-400)[0]))
}

func TestNewSynthetics_UnknownSource(t *testing.T) {
	_, err := NewSynthetics(catalog.Default, []cfg.SyntheticConfig{{Address: 0x100, Source: "Nope"}})
	assert.Error(t, err)
}

// ---- seeding, health, construction ----

func TestSeed(t *testing.T) {
	b := newBridge(t, cfg.StrategyCacheAndServe, &fakeLink{}, &fakePublisher{}, nil)

	require.NoError(t, b.Seed(map[string]float64{catalog.Frequency: 50.0}))
	assert.Equal(t, 1, b.Snapshot().Len())

	f := spec(t, catalog.Frequency)
	got := b.Provider().OnRead(context.Background(), f.Address, 2)
	assert.InDelta(t, 50.0, decode(t, got, f), 1e-4)

	assert.Error(t, b.Seed(map[string]float64{"Nope": 1}))
}

func TestObserveUpstream(t *testing.T) {
	b := newBridge(t, cfg.StrategyOnDemand, &fakeLink{}, nil, nil)

	b.ObserveUpstream(time.Millisecond, &upstream.DeviceError{Function: 3, Code: 2})
	s := b.Tracker().Snapshot()
	assert.Equal(t, status.HealthError, s.Health)
	assert.Equal(t, uint16(2), s.LastErrorCode)

	b.ObserveUpstream(time.Millisecond, nil)
	assert.Equal(t, status.HealthOK, b.Tracker().Snapshot().Health)
	assert.True(t, b.Tracker().HasSucceeded())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Options{Strategy: cfg.StrategyOnDemand, Link: &fakeLink{}})
	assert.Error(t, err, "image required")

	_, err = New(Options{Strategy: cfg.StrategyOnDemand, Image: image.New(1)})
	assert.Error(t, err, "link required")

	_, err = New(Options{Strategy: "mirror", Image: image.New(1), Link: &fakeLink{}})
	assert.Error(t, err)
}

func TestRunClock_WritesImmediately(t *testing.T) {
	img := image.New(1)
	ctx, cancel := context.WithCancel(context.Background())

	ticked := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunClock(ctx, img, func(time.Time) {
			select {
			case ticked <- struct{}{}:
			default:
			}
		})
	}()

	select {
	case <-ticked:
	case <-time.After(2 * time.Second):
		t.Fatalf("clock not written at start")
	}

	regs, err := img.Read(image.ClockAddress, image.ClockWords)
	require.NoError(t, err)
	assert.Equal(t, uint16(time.Now().Year()), regs[image.ClockYear])

	cancel()
	assert.NoError(t, <-done)
}

func TestRunPoll_AppliesResults(t *testing.T) {
	va := spec(t, catalog.VoltagePhaseA)
	link := &fakeLink{regs: map[uint16][]uint16{}}
	// the poller reads the first contiguous block starting at Voltage_Phase_A
	link.regs[va.Address] = codec.Encode(229.9, va).Words()

	b := newBridge(t, cfg.StrategyCacheAndServe, link, &fakePublisher{}, nil)
	p, err := poller.Build("test", time.Hour, 64, link)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.RunPoll(ctx, p) }()

	require.Eventually(t, func() bool {
		r, ok := b.Snapshot().Lookup(va.Address)
		return ok && r.Value > 229.8 && r.Value < 230.0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

// internal/image/image_test.go
package image

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tamzrod/dtsu-bridge/internal/catalog"
)

func TestHeaderWrittenWithDeviceID(t *testing.T) {
	img := New(4)

	regs, err := img.Read(HeaderAddress, uint16(HeaderWords))
	if err != nil {
		t.Fatalf("Read err=%v", err)
	}

	if regs[0] != 207 || regs[1] != 701 {
		t.Fatalf("unexpected header start: %v", regs[:2])
	}
	if regs[HeaderDeviceIDSlot] != 4 {
		t.Fatalf("device id slot: got=%d want=4", regs[HeaderDeviceIDSlot])
	}
	if HeaderWords != 47 {
		t.Fatalf("header length: got=%d want=47", HeaderWords)
	}
}

func TestHeaderNotOverwritable(t *testing.T) {
	img := New(1)

	err := img.Write(HeaderDeviceIDSlot, []uint16{99})
	if !errors.Is(err, ErrHeaderProtected) {
		t.Fatalf("expected ErrHeaderProtected, got %v", err)
	}

	regs, _ := img.Read(HeaderDeviceIDSlot, 1)
	if regs[0] != 1 {
		t.Fatalf("header modified: got=%d", regs[0])
	}
}

func TestSetClock(t *testing.T) {
	img := New(1)
	ts := time.Date(2025, time.March, 14, 15, 9, 26, 0, time.Local)

	img.SetClock(ts)

	regs, err := img.Read(ClockAddress, ClockWords)
	if err != nil {
		t.Fatalf("Read err=%v", err)
	}

	want := []uint16{26, 9, 15, 14, 3, 2025}
	if len(regs) != len(want) {
		t.Fatalf("expected %d words, got %d", len(want), len(regs))
	}
	for i := range want {
		if regs[i] != want[i] {
			t.Fatalf("clock word %d: got=%d want=%d", i, regs[i], want[i])
		}
	}

	// neighbours untouched
	after, _ := img.Read(ClockAddress+ClockWords, 1)
	if after[0] != 0 {
		t.Fatalf("clock write spilled into 0x%04X", ClockAddress+ClockWords)
	}
}

func TestWriteOutOfRange(t *testing.T) {
	img := New(1)

	if err := img.Write(Size-1, []uint16{1, 2}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if err := img.Write(Size-2, []uint16{1, 2}); err != nil {
		t.Fatalf("last pair should fit: %v", err)
	}
}

func TestReadOutOfRange(t *testing.T) {
	img := New(1)

	if _, err := img.Read(Size-1, 2); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestReadUnknownAddressZero(t *testing.T) {
	img := New(1)

	regs, err := img.Read(0x3000, 4)
	if err != nil {
		t.Fatalf("Read err=%v", err)
	}
	for i, r := range regs {
		if r != 0 {
			t.Fatalf("word %d not zero: %d", i, r)
		}
	}
}

func TestSetValueRoundTrip(t *testing.T) {
	img := New(1)
	s, _ := catalog.Default.ByName(catalog.VoltagePhaseAB)

	if err := img.SetValue(s, 403.6); err != nil {
		t.Fatalf("SetValue err=%v", err)
	}

	v, err := img.Value(s)
	if err != nil {
		t.Fatalf("Value err=%v", err)
	}
	if v < 403.59 || v > 403.61 {
		t.Fatalf("got %v want 403.6", v)
	}
}

func TestSizeCoversCatalog(t *testing.T) {
	if uint32(Size) < catalog.Default.MaxAddress() {
		t.Fatalf("image size 0x%04X below catalog end 0x%04X", Size, catalog.Default.MaxAddress())
	}
}

func TestConcurrentClockReadsNeverTorn(t *testing.T) {
	img := New(1)
	a := time.Date(2024, 1, 1, 1, 1, 1, 0, time.Local)
	b := time.Date(2025, 12, 31, 23, 59, 59, 0, time.Local)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				img.SetClock(a)
			} else {
				img.SetClock(b)
			}
		}
	}()

	img.SetClock(a)
	for i := 0; i < 2000; i++ {
		regs, _ := img.Read(ClockAddress, ClockWords)
		if regs[ClockYear] == 2024 && regs[ClockSecond] != 1 {
			t.Errorf("torn clock read: %v", regs)
			break
		}
		if regs[ClockYear] == 2025 && regs[ClockSecond] != 59 {
			t.Errorf("torn clock read: %v", regs)
			break
		}
	}

	close(stop)
	wg.Wait()
}

package trigger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/photobooth/internal/hw/gpio"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	mu       sync.Mutex
	calls    []gpioCall
	failHigh bool
}

type gpioCall struct {
	op    string
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	if d.failHigh && level == gpio.High {
		return errors.New("write failed")
	}
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	return gpio.High, nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) writeCalls() []gpioCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []gpioCall
	for _, c := range d.calls {
		if c.op == "write" {
			result = append(result, c)
		}
	}
	return result
}

func TestFlash_InitializedOff(t *testing.T) {
	drv := &recordingDriver{}
	NewFlash(drv, 27, time.Millisecond)

	writes := drv.writeCalls()
	if len(writes) != 1 || writes[0].pin != 27 || writes[0].level != gpio.Low {
		t.Errorf("init writes = %v, want single LOW on pin 27", writes)
	}
}

func TestFlash_FireSequence(t *testing.T) {
	drv := &recordingDriver{}
	flash := NewFlash(drv, 27, time.Microsecond)
	drv.calls = nil // reset after init

	var litDuringExposure bool
	err := flash.Fire(func() error {
		writes := drv.writeCalls()
		litDuringExposure = len(writes) == 1 && writes[0].level == gpio.High
		return nil
	})
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if !litDuringExposure {
		t.Error("flash was not lit while the exposure ran")
	}

	expected := []struct {
		level gpio.Level
		desc  string
	}{
		{gpio.High, "flash on"},
		{gpio.Low, "flash off"},
	}
	writes := drv.writeCalls()
	if len(writes) != len(expected) {
		t.Fatalf("expected %d writes, got %d: %v", len(expected), len(writes), writes)
	}
	for i, exp := range expected {
		if writes[i].pin != 27 || writes[i].level != exp.level {
			t.Errorf("step %d (%s): pin=%d level=%v, want pin=27 level=%v",
				i, exp.desc, writes[i].pin, writes[i].level, exp.level)
		}
	}
}

func TestFlash_MockPinHighDuringExposure(t *testing.T) {
	drv := gpio.NewMockDriver()
	flash := NewFlash(drv, 17, time.Millisecond)

	var level gpio.Level
	if err := flash.Fire(func() error {
		var err error
		level, err = drv.ReadPin(17)
		return err
	}); err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if level != gpio.High {
		t.Errorf("pin level during exposure = %v, want HIGH", level)
	}
	if after, _ := drv.ReadPin(17); after != gpio.Low {
		t.Errorf("pin level after Fire = %v, want LOW", after)
	}
}

func TestFlash_FireErrorSwitchesOff(t *testing.T) {
	drv := &recordingDriver{}
	flash := NewFlash(drv, 27, time.Microsecond)
	drv.calls = nil
	drv.failHigh = true

	exposed := false
	if err := flash.Fire(func() error { exposed = true; return nil }); err == nil {
		t.Fatal("expected error, got nil")
	}
	if !exposed {
		t.Error("exposure skipped when the flash failed")
	}
	writes := drv.writeCalls()
	if last := writes[len(writes)-1]; last.level != gpio.Low {
		t.Errorf("last write = %v, want LOW after failure", last)
	}
}

func TestFlash_ExposureErrorReturned(t *testing.T) {
	drv := &recordingDriver{}
	flash := NewFlash(drv, 27, time.Microsecond)
	drv.calls = nil

	readErr := errors.New("read failed")
	if err := flash.Fire(func() error { return readErr }); !errors.Is(err, readErr) {
		t.Errorf("Fire = %v, want %v", err, readErr)
	}
	writes := drv.writeCalls()
	if last := writes[len(writes)-1]; last.level != gpio.Low {
		t.Errorf("last write = %v, want LOW after failed exposure", last)
	}
}

func TestButton_FallingEdgeTriggersOnce(t *testing.T) {
	drv := gpio.NewMockDriver()
	btn := NewButton(drv, 17, time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pressed := make(chan struct{}, 10)
	done := make(chan error, 1)
	go func() {
		done <- btn.Watch(ctx, func() { pressed <- struct{}{} })
	}()

	time.Sleep(10 * time.Millisecond)
	drv.SetLevel(17, gpio.Low) // press and hold

	select {
	case <-pressed:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for press")
	}

	// Holding the button must not retrigger.
	time.Sleep(20 * time.Millisecond)
	if n := len(pressed); n != 0 {
		t.Errorf("held button triggered %d extra presses", n)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Watch returned %v, want context.Canceled", err)
	}
}

func TestButton_ReleasedNeverTriggers(t *testing.T) {
	drv := gpio.NewMockDriver()
	btn := NewButton(drv, 17, time.Millisecond, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	presses := 0
	_ = btn.Watch(ctx, func() { presses++ })
	if presses != 0 {
		t.Errorf("presses = %d, want 0 for a released button", presses)
	}
}

func TestButton_DebounceIgnoresQuickRepress(t *testing.T) {
	drv := gpio.NewMockDriver()
	btn := NewButton(drv, 17, time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	presses := 0
	go func() {
		_ = btn.Watch(ctx, func() {
			mu.Lock()
			presses++
			mu.Unlock()
		})
	}()

	for i := 0; i < 3; i++ {
		drv.SetLevel(17, gpio.Low)
		time.Sleep(10 * time.Millisecond)
		drv.SetLevel(17, gpio.High)
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	if presses != 1 {
		t.Errorf("presses = %d, want 1 within debounce window", presses)
	}
}

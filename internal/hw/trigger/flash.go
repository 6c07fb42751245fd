package trigger

import (
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
)

// Flash drives a flash LED (or relay) wired to a GPIO pin:
// - HIGH: lit
// - LOW: off
//
// Fire sequence:
// 1. pin to HIGH (flash on)
// 2. wait the configured warm-up duration
// 3. run the exposure callback with the flash still lit
// 4. pin back to LOW
type Flash struct {
	gpio     gpio.Driver
	pin      int
	duration time.Duration
}

// NewFlash creates a GPIO-controlled flash. The pin is configured as an
// output and switched off.
func NewFlash(g gpio.Driver, pin int, duration time.Duration) *Flash {
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)

	return &Flash{
		gpio:     g,
		pin:      pin,
		duration: duration,
	}
}

// Fire runs expose while the flash is lit. The pin is always switched back
// off after expose returns. If the flash cannot be lit, expose still runs
// in the dark and the flash error is returned alongside expose's.
func (f *Flash) Fire(expose func() error) error {
	debug.Verbose("Flash: on (pin %d -> HIGH), warm-up %v", f.pin, f.duration)
	var flashErr error
	if err := f.gpio.WritePin(f.pin, gpio.High); err != nil {
		flashErr = fmt.Errorf("flash on: %w", err)
		_ = f.gpio.WritePin(f.pin, gpio.Low)
	} else {
		time.Sleep(f.duration)
	}

	exposeErr := expose()

	debug.Verbose("Flash: off (pin %d -> LOW)", f.pin)
	if err := f.gpio.WritePin(f.pin, gpio.Low); err != nil && flashErr == nil {
		flashErr = fmt.Errorf("flash off: %w", err)
	}
	return errors.Join(exposeErr, flashErr)
}

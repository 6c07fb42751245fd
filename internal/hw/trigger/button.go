package trigger

import (
	"context"
	"time"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/hw/gpio"
)

// Button is a push button wired between a GPIO pin and ground with the
// pin pulled up: released reads HIGH, pressed reads LOW.
type Button struct {
	gpio     gpio.Driver
	pin      int
	poll     time.Duration
	debounce time.Duration
}

// NewButton configures pin as an input.
func NewButton(g gpio.Driver, pin int, poll, debounce time.Duration) *Button {
	_ = g.SetupPin(pin, gpio.InputPullUp)
	if poll <= 0 {
		poll = 20 * time.Millisecond
	}
	return &Button{
		gpio:     g,
		pin:      pin,
		poll:     poll,
		debounce: debounce,
	}
}

// Watch polls the button until ctx is cancelled and calls onPress on every
// falling edge (released -> pressed). Presses closer than the debounce
// window to the previous accepted press are ignored. onPress runs on the
// polling goroutine, so a slow handler delays the next poll.
func (b *Button) Watch(ctx context.Context, onPress func()) error {
	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	last := gpio.High
	var lastPress time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		level, err := b.gpio.ReadPin(b.pin)
		if err != nil {
			return err
		}
		if last == gpio.High && level == gpio.Low {
			now := time.Now()
			if lastPress.IsZero() || now.Sub(lastPress) >= b.debounce {
				lastPress = now
				debug.Live("Shutter button pressed (pin %d)", b.pin)
				onPress()
			} else {
				debug.Trace("Shutter button bounce ignored (pin %d)", b.pin)
			}
		}
		last = level
	}
}

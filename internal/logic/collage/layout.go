package collage

import (
	"fmt"
	"strings"

	"github.com/cjeanneret/photobooth/internal/logic/geometry"
)

// Layout is an immutable collage arrangement: a canonical output size and
// one normalized rectangle per slot, in slot index order.
type Layout struct {
	Key    string
	Name   string
	Width  int
	Height int
	Rects  []geometry.NormRect
}

// Slots returns the number of frames the layout holds.
func (l Layout) Slots() int {
	return len(l.Rects)
}

// Plan returns the pixel geometry of the layout canvas.
func (l Layout) Plan() *geometry.SlotPlan {
	return geometry.CalculateSlotPlan(l.Width, l.Height, l.Rects)
}

// Predefined layouts.
var (
	TwoByTwo = Layout{Key: "2x2", Name: "2×2", Width: 1080, Height: 1080, Rects: geometry.Grid(2, 2)}

	OnePlusTwo = Layout{Key: "1+2", Name: "1+2", Width: 1080, Height: 1080, Rects: []geometry.NormRect{
		{X: 0, Y: 0, W: 1, H: 0.5},
		{X: 0, Y: 0.5, W: 0.5, H: 0.5},
		{X: 0.5, Y: 0.5, W: 0.5, H: 0.5},
	}}

	ThreeByOne = Layout{Key: "3x1", Name: "3×1", Width: 1080, Height: 1350, Rects: geometry.Grid(1, 3)}

	TwoByOne = Layout{Key: "2x1", Name: "2×1", Width: 1080, Height: 540, Rects: geometry.Grid(2, 1)}
)

// All returns the predefined layouts in display order.
func All() []Layout {
	return []Layout{TwoByTwo, OnePlusTwo, ThreeByOne, TwoByOne}
}

// Lookup finds a predefined layout by key or display name. "x" and "×"
// are interchangeable.
func Lookup(s string) (Layout, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "×", "x")
	for _, l := range All() {
		if norm == l.Key || norm == strings.ReplaceAll(l.Name, "×", "x") {
			return l, nil
		}
	}
	return Layout{}, fmt.Errorf("unknown layout: %q", s)
}

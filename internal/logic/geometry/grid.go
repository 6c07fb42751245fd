package geometry

import (
	"image"
	"math"
)

// NormRect is a rectangle in normalized output coordinates:
// X and Y locate the top-left corner, W and H the size, all in [0, 1].
type NormRect struct {
	X, Y, W, H float64
}

// Pixels maps the normalized rectangle onto a width x height canvas.
// Edges are rounded independently so that adjacent slots share borders
// without gaps or overlap.
func (r NormRect) Pixels(width, height int) image.Rectangle {
	x0 := int(math.Round(r.X * float64(width)))
	y0 := int(math.Round(r.Y * float64(height)))
	x1 := int(math.Round((r.X + r.W) * float64(width)))
	y1 := int(math.Round((r.Y + r.H) * float64(height)))
	return image.Rect(x0, y0, x1, y1)
}

// SlotPlan is the pixel geometry of a collage canvas.
type SlotPlan struct {
	Width  int               // canvas width in pixels
	Height int               // canvas height in pixels
	Slots  []image.Rectangle // destination rectangle per slot index
}

// CalculateSlotPlan converts normalized slots into pixel rectangles
// on a canvas of the given size.
func CalculateSlotPlan(width, height int, slots []NormRect) *SlotPlan {
	rects := make([]image.Rectangle, len(slots))
	for i, s := range slots {
		rects[i] = s.Pixels(width, height)
	}
	return &SlotPlan{
		Width:  width,
		Height: height,
		Slots:  rects,
	}
}

// Bounds returns the canvas rectangle.
func (p *SlotPlan) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

// Grid returns the normalized slots of a cols x rows grid, row-major
// (left to right, then top to bottom).
func Grid(cols, rows int) []NormRect {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	w := 1.0 / float64(cols)
	h := 1.0 / float64(rows)
	slots := make([]NormRect, 0, cols*rows)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			slots = append(slots, NormRect{
				X: float64(col) * w,
				Y: float64(row) * h,
				W: w,
				H: h,
			})
		}
	}
	return slots
}

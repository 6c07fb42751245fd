package collage

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync/atomic"
	"time"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/photobooth/internal/debug"
	"github.com/cjeanneret/photobooth/internal/export"
	"github.com/cjeanneret/photobooth/internal/logic/filter"
	"github.com/cjeanneret/photobooth/internal/logic/geometry"
)

var (
	ErrCompositionFailed = errors.New("composition failed")
	ErrTooManyFrames     = errors.New("more frames than layout slots")
)

// Frame is one captured still waiting to be rendered.
type Frame struct {
	ID           int64         `json:"id"`
	Still        []byte        `json:"-"` // encoded JPEG of the raw capture
	Filter       filter.Filter `json:"-"`
	SourceWidth  int           `json:"sourceWidth"`
	SourceHeight int           `json:"sourceHeight"`
	CapturedAt   time.Time     `json:"capturedAt"`
}

// Render decodes the still and applies the frame's filter at native
// resolution.
func (f Frame) Render() (*image.RGBA, error) {
	img, err := export.Decode(f.Still)
	if err != nil {
		return nil, err
	}
	return f.Filter.Apply(img), nil
}

// Compose renders frames into layout. Frame i goes to slot i; slots without
// a frame stay white. Every occupied slot is decoded concurrently and the
// canvas is assembled only once all of them succeeded.
func Compose(ctx context.Context, frames []Frame, layout Layout) (*image.RGBA, error) {
	if len(frames) > layout.Slots() {
		return nil, fmt.Errorf("%w: %d frames, layout %s has %d slots",
			ErrTooManyFrames, len(frames), layout.Key, layout.Slots())
	}
	plan := layout.Plan()
	debug.Layout(layout.Name, layout.Slots(), plan.Width, plan.Height)

	tiles := make([]*image.RGBA, len(frames))
	pending := int32(len(frames))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tile, err := renderSlot(f, plan.Slots[i])
			if err != nil {
				return fmt.Errorf("slot %d (frame %d): %w", i, f.ID, err)
			}
			tiles[i] = tile
			debug.Slot(i, int(atomic.AddInt32(&pending, -1)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrCompositionFailed, err)
	}

	canvas := image.NewRGBA(plan.Bounds())
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	for i, tile := range tiles {
		draw.Draw(canvas, plan.Slots[i], tile, image.Point{}, draw.Src)
	}
	return canvas, nil
}

// renderSlot produces the slot-sized, filtered tile for one frame.
func renderSlot(f Frame, slot image.Rectangle) (*image.RGBA, error) {
	src, err := export.Decode(f.Still)
	if err != nil {
		return nil, err
	}
	crop := geometry.CoverCrop(src.Bounds(), slot.Dx(), slot.Dy())
	if debug.IsEnabled(debug.LevelVerbose) {
		l, t, r, b := geometry.Margins(src.Bounds(), crop)
		debug.Verbose("Frame %d: source %v, crop %v (margins %d/%d/%d/%d), slot %v, filter %s",
			f.ID, src.Bounds().Size(), crop, l, t, r, b, slot.Size(), f.Filter.Key)
	}

	tile := image.NewRGBA(image.Rect(0, 0, slot.Dx(), slot.Dy()))
	xdraw.CatmullRom.Scale(tile, tile.Bounds(), src, crop, xdraw.Src, nil)
	f.Filter.ApplyRGBA(tile, tile.Bounds())
	return tile, nil
}

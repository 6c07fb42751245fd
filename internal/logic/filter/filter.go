package filter

import (
	"fmt"
	"image"
	"image/draw"
	"math"
	"strings"
)

// Kind identifies an elementary adjustment.
type Kind int

const (
	Brightness Kind = iota // multiply each channel
	Contrast               // scale around mid-gray
	Saturate               // scale chroma
	HueRotate              // rotate hue, amount in degrees
	Sepia                  // mix toward sepia tone
	Grayscale              // mix toward luminance
)

func (k Kind) String() string {
	switch k {
	case Brightness:
		return "brightness"
	case Contrast:
		return "contrast"
	case Saturate:
		return "saturate"
	case HueRotate:
		return "hue-rotate"
	case Sepia:
		return "sepia"
	case Grayscale:
		return "grayscale"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Adjustment is one step of a filter chain.
type Adjustment struct {
	Kind   Kind
	Amount float64
}

// Filter is an immutable, named chain of adjustments. Adjustments run in
// order and every step clamps channels to [0, 1].
type Filter struct {
	Key         string
	Name        string
	Adjustments []Adjustment
}

// Predefined filters. The set is closed.
var (
	None    = Filter{Key: "none", Name: "None"}
	Vintage = Filter{Key: "vintage", Name: "Vintage", Adjustments: []Adjustment{
		{Sepia, 0.8}, {Contrast, 1.2},
	}}
	BW = Filter{Key: "bw", Name: "B&W", Adjustments: []Adjustment{
		{Grayscale, 1},
	}}
	Dreamy = Filter{Key: "dreamy", Name: "Dreamy", Adjustments: []Adjustment{
		{Brightness, 1.2}, {Contrast, 0.8}, {Saturate, 1.5},
	}}
	Warm = Filter{Key: "warm", Name: "Warm", Adjustments: []Adjustment{
		{Sepia, 0.4}, {Saturate, 1.6}, {HueRotate, -30},
	}}
)

// All returns the predefined filters in display order.
func All() []Filter {
	return []Filter{None, Vintage, BW, Dreamy, Warm}
}

// Lookup finds a predefined filter by key, display name (case-insensitive)
// or CSS filter value ("sepia(0.8) contrast(1.2)").
func Lookup(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None, nil
	}
	for _, f := range All() {
		if s == f.Key || strings.EqualFold(s, f.Name) || s == f.CSS() {
			return f, nil
		}
	}
	return Filter{}, fmt.Errorf("unknown filter: %q", s)
}

// IsIdentity reports whether the filter leaves pixels unchanged.
func (f Filter) IsIdentity() bool {
	return len(f.Adjustments) == 0
}

// CSS renders the filter as a CSS filter value.
func (f Filter) CSS() string {
	if f.IsIdentity() {
		return "none"
	}
	parts := make([]string, len(f.Adjustments))
	for i, a := range f.Adjustments {
		if a.Kind == HueRotate {
			parts[i] = fmt.Sprintf("%s(%sdeg)", a.Kind, formatAmount(a.Amount))
		} else {
			parts[i] = fmt.Sprintf("%s(%s)", a.Kind, formatAmount(a.Amount))
		}
	}
	return strings.Join(parts, " ")
}

func formatAmount(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

// ApplyRGBA filters the pixels of img inside r in place. Pixels outside r
// are not touched. Alpha is preserved.
func (f Filter) ApplyRGBA(img *image.RGBA, r image.Rectangle) {
	if f.IsIdentity() {
		return
	}
	r = r.Intersect(img.Rect)
	if r.Empty() {
		return
	}
	steps := f.compile()

	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		row := img.Pix[off : off+4*r.Dx()]
		for i := 0; i < len(row); i += 4 {
			a := row[i+3]
			if a == 0 {
				continue
			}
			// Work on straight (non-premultiplied) values.
			af := float64(a) / 255
			c := [3]float64{
				float64(row[i]) / 255 / af,
				float64(row[i+1]) / 255 / af,
				float64(row[i+2]) / 255 / af,
			}
			for _, s := range steps {
				c = s.apply(c)
			}
			row[i] = toByte(c[0] * af)
			row[i+1] = toByte(c[1] * af)
			row[i+2] = toByte(c[2] * af)
		}
	}
}

// Apply returns a filtered RGBA copy of img.
func (f Filter) Apply(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	f.ApplyRGBA(dst, b)
	return dst
}

func toByte(v float64) uint8 {
	v = math.Round(v * 255)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// step is an affine color transform: out = m·c + k, clamped to [0, 1].
type step struct {
	m [3][3]float64
	k [3]float64
}

func (s step) apply(c [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		v := s.m[i][0]*c[0] + s.m[i][1]*c[1] + s.m[i][2]*c[2] + s.k[i]
		out[i] = math.Min(1, math.Max(0, v))
	}
	return out
}

func (f Filter) compile() []step {
	steps := make([]step, len(f.Adjustments))
	for i, a := range f.Adjustments {
		steps[i] = a.step()
	}
	return steps
}

var identity = [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// step returns the Filter Effects matrix for the adjustment.
func (a Adjustment) step() step {
	v := a.Amount
	switch a.Kind {
	case Brightness:
		return step{m: [3][3]float64{{v, 0, 0}, {0, v, 0}, {0, 0, v}}}
	case Contrast:
		o := 0.5 - 0.5*v
		return step{m: [3][3]float64{{v, 0, 0}, {0, v, 0}, {0, 0, v}}, k: [3]float64{o, o, o}}
	case Saturate:
		return step{m: [3][3]float64{
			{0.213 + 0.787*v, 0.715 - 0.715*v, 0.072 - 0.072*v},
			{0.213 - 0.213*v, 0.715 + 0.285*v, 0.072 - 0.072*v},
			{0.213 - 0.213*v, 0.715 - 0.715*v, 0.072 + 0.928*v},
		}}
	case HueRotate:
		rad := v * math.Pi / 180
		cos, sin := math.Cos(rad), math.Sin(rad)
		return step{m: [3][3]float64{
			{0.213 + cos*0.787 - sin*0.213, 0.715 - cos*0.715 - sin*0.715, 0.072 - cos*0.072 + sin*0.928},
			{0.213 - cos*0.213 + sin*0.143, 0.715 + cos*0.285 + sin*0.140, 0.072 - cos*0.072 - sin*0.283},
			{0.213 - cos*0.213 - sin*0.787, 0.715 - cos*0.715 + sin*0.715, 0.072 + cos*0.928 + sin*0.072},
		}}
	case Sepia:
		p := 1 - math.Min(1, math.Max(0, v))
		return step{m: [3][3]float64{
			{0.393 + 0.607*p, 0.769 - 0.769*p, 0.189 - 0.189*p},
			{0.349 - 0.349*p, 0.686 + 0.314*p, 0.168 - 0.168*p},
			{0.272 - 0.272*p, 0.534 - 0.534*p, 0.131 + 0.869*p},
		}}
	case Grayscale:
		p := 1 - math.Min(1, math.Max(0, v))
		return step{m: [3][3]float64{
			{0.2126 + 0.7874*p, 0.7152 - 0.7152*p, 0.0722 - 0.0722*p},
			{0.2126 - 0.2126*p, 0.7152 + 0.2848*p, 0.0722 - 0.0722*p},
			{0.2126 - 0.2126*p, 0.7152 - 0.7152*p, 0.0722 + 0.9278*p},
		}}
	default:
		return step{m: identity}
	}
}

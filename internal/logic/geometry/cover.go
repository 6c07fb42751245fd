package geometry

import "image"

// CoverCrop returns the centered sub-rectangle of src whose aspect ratio
// matches dstW:dstH. Scaling that region to dstW x dstH fills the
// destination completely without distortion.
//
// A source wider than the destination loses equal margins left and right
// and keeps its full height; a taller source loses equal margins top and
// bottom and keeps its full width. Opposing margins differ by at most one
// pixel.
func CoverCrop(src image.Rectangle, dstW, dstH int) image.Rectangle {
	srcW, srcH := src.Dx(), src.Dy()
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return src
	}

	switch {
	case srcW*dstH > dstW*srcH:
		// Wider than the slot: crop left and right.
		cropW := roundDiv(srcH*dstW, dstH)
		cropW = clamp(cropW, 1, srcW)
		x0 := src.Min.X + (srcW-cropW)/2
		return image.Rect(x0, src.Min.Y, x0+cropW, src.Max.Y)
	case srcW*dstH < dstW*srcH:
		// Taller than the slot: crop top and bottom.
		cropH := roundDiv(srcW*dstH, dstW)
		cropH = clamp(cropH, 1, srcH)
		y0 := src.Min.Y + (srcH-cropH)/2
		return image.Rect(src.Min.X, y0, src.Max.X, y0+cropH)
	default:
		return src
	}
}

// Margins returns the cropped margins (left, top, right, bottom) of crop
// within src.
func Margins(src, crop image.Rectangle) (left, top, right, bottom int) {
	return crop.Min.X - src.Min.X, crop.Min.Y - src.Min.Y, src.Max.X - crop.Max.X, src.Max.Y - crop.Max.Y
}

// roundDiv returns num/den rounded to the nearest integer (positive operands).
func roundDiv(num, den int) int {
	return (2*num + den) / (2 * den)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package inpaint

import (
	"image"
	"image/color"

	"github.com/badgewipe/badgewipe/internal/detection"
	"github.com/badgewipe/badgewipe/internal/imaging"
)

// maskWhite is the fully-inpaint mask value; G and B mirror R so the mask
// renders as grayscale when visualized.
var maskWhite = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// BuildDetectionMask rasterizes the inpainting mask for a detected badge:
// a square of BadgeSizeEstimate pixels at the detection's location, dilated
// outward by MaskDilation on all sides, clamped to the image bounds, then
// feathered with a Gaussian blur of MaskFeatherRadius.
//
// The detected box dimensions are deliberately ignored for sizing; template
// matching locates the badge reliably but its box size tracks the winning
// template scale, not the actual badge extent.
func BuildDetectionMask(bounds image.Rectangle, det *detection.Result, cfg Config) *image.NRGBA {
	w, h := bounds.Dx(), bounds.Dy()
	mask := imaging.New(w, h)

	rect := image.Rect(
		det.X-cfg.MaskDilation,
		det.Y-cfg.MaskDilation,
		det.X+cfg.BadgeSizeEstimate+cfg.MaskDilation,
		det.Y+cfg.BadgeSizeEstimate+cfg.MaskDilation,
	).Intersect(image.Rect(0, 0, w, h))

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			mask.SetNRGBA(x, y, maskWhite)
		}
	}
	return imaging.BlurGaussian(mask, cfg.MaskFeatherRadius)
}

// BuildFixedMask rasterizes the fixed-position mask: a filled circle
// centered FixedOffsetRight/FixedOffsetBottom pixels in from the
// bottom-right corner, with radius FixedBaseRadius+MaskDilation, clamped to
// the image bounds and feathered like the detection mask.
func BuildFixedMask(bounds image.Rectangle, cfg Config) *image.NRGBA {
	w, h := bounds.Dx(), bounds.Dy()
	mask := imaging.New(w, h)

	cx := w - cfg.FixedOffsetRight
	cy := h - cfg.FixedOffsetBottom
	radius := cfg.FixedBaseRadius + cfg.MaskDilation
	rSq := radius * radius

	minX := clampInt(cx-radius, 0, w)
	maxX := clampInt(cx+radius+1, 0, w)
	minY := clampInt(cy-radius, 0, h)
	maxY := clampInt(cy+radius+1, 0, h)

	for y := minY; y < maxY; y++ {
		dy := y - cy
		for x := minX; x < maxX; x++ {
			dx := x - cx
			if dx*dx+dy*dy <= rSq {
				mask.SetNRGBA(x, y, maskWhite)
			}
		}
	}
	return imaging.BlurGaussian(mask, cfg.MaskFeatherRadius)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

package imaging

import (
	"image"

	"github.com/disintegration/imaging"
)

// New returns an opaque black buffer of the given dimensions.
//
// Every pixel is (0,0,0,255). The buffer satisfies the package invariants:
// bounds anchored at (0,0) and stride == 4*width.
func New(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	return img
}

// Clone returns a deep copy of src normalized to the package's buffer
// conventions. The result never aliases src's pixel data, so callers may
// mutate it freely.
func Clone(src image.Image) *image.NRGBA {
	return imaging.Clone(src)
}

// Crop extracts the given rectangle from src into a new buffer. The rectangle
// is intersected with the image bounds first; an empty intersection yields a
// 0x0 buffer.
func Crop(src image.Image, rect image.Rectangle) *image.NRGBA {
	return imaging.Crop(src, rect)
}

// Luminance converts src to a single-channel BT.601 luminance plane in
// [0,255], returned row-major along with the buffer dimensions.
//
// The weights (0.299*R + 0.587*G + 0.114*B) match the grayscale conversion
// used throughout the detection code, so template and search-region
// luminance are always computed identically.
func Luminance(src *image.NRGBA) ([]float64, int, int) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			off := row + x*4
			r := float64(src.Pix[off])
			g := float64(src.Pix[off+1])
			bl := float64(src.Pix[off+2])
			plane[y*w+x] = 0.299*r + 0.587*g + 0.114*bl
		}
	}
	return plane, w, h
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution and sampling loops.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// clampF constrains a float value to the range [min, max].
func clampF(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

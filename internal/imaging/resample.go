package imaging

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Resample scales src to width x height using bilinear interpolation and
// returns a new buffer. src is never mutated; identity dimensions still
// produce a fresh copy.
func Resample(src *image.NRGBA, width, height int) *image.NRGBA {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if b := src.Bounds(); b.Dx() == width && b.Dy() == height {
		return Clone(src)
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

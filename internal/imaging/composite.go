package imaging

import (
	"image"
	"math"
)

// MaskBounds returns the tight bounding box of mask pixels whose R channel
// exceeds threshold, in the mask's own coordinate space. The second return
// value is false when no pixel exceeds the threshold.
func MaskBounds(mask *image.NRGBA, threshold uint8) (image.Rectangle, bool) {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	minX, minY := w, h
	maxX, maxY := -1, -1
	for y := 0; y < h; y++ {
		row := mask.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			if mask.Pix[row+x*4] > threshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// CompositeFeathered blends patch into base at (offX, offY) using the patch
// mask's R channel as per-pixel alpha and returns a new full-size buffer.
//
// For every patch pixel the result is original*(1-a) + patch*a per channel,
// with a = maskR/255. Pixels outside the patch rectangle are byte-identical
// to base. The alpha channel inside the patch rectangle is forced opaque.
//
// Because the feathered mask falls to zero at the patch periphery, the blend
// introduces no hard seam at the patch boundary; and when patch equals the
// corresponding region of base, the output equals base exactly.
func CompositeFeathered(base, patch, mask *image.NRGBA, offX, offY int) *image.NRGBA {
	dst := Clone(base)
	bw, bh := dst.Bounds().Dx(), dst.Bounds().Dy()
	pb := patch.Bounds()
	pw, ph := pb.Dx(), pb.Dy()
	mb := mask.Bounds()

	for y := 0; y < ph; y++ {
		dy := offY + y
		if dy < 0 || dy >= bh {
			continue
		}
		for x := 0; x < pw; x++ {
			dx := offX + x
			if dx < 0 || dx >= bw {
				continue
			}
			alpha := float64(mask.Pix[mask.PixOffset(mb.Min.X+x, mb.Min.Y+y)]) / 255.0
			pOff := patch.PixOffset(pb.Min.X+x, pb.Min.Y+y)
			dOff := dst.PixOffset(dx, dy)
			for c := 0; c < 3; c++ {
				orig := float64(dst.Pix[dOff+c])
				inp := float64(patch.Pix[pOff+c])
				blended := orig*(1-alpha) + inp*alpha
				dst.Pix[dOff+c] = uint8(math.Round(clampF(blended, 0, 255)))
			}
			dst.Pix[dOff+3] = 0xff
		}
	}
	return dst
}

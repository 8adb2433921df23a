package imaging

import (
	"image"
	"math"
)

// GaussianKernel builds the 1-D blur kernel used for mask feathering.
//
// The kernel has size 2*radius+1 with sigma = radius/3 and its weights are
// normalized to sum to 1, so convolving a constant signal returns the same
// constant. A radius <= 0 yields the identity kernel.
func GaussianKernel(radius int) []float64 {
	if radius <= 0 {
		return []float64{1}
	}
	sigma := float64(radius) / 3.0
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		w := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// BlurGaussian applies a separable Gaussian blur to src and returns a new
// buffer: a horizontal pass with the 1-D kernel from GaussianKernel followed
// by an identical vertical pass.
//
// Sampling coordinates at the borders are clamped to the valid range (edge
// replication, not zero padding), which keeps uniform regions uniform right
// up to the edge and prevents the darkened border a zero-padded blur would
// produce on a white mask.
//
// All four channels are filtered; because the kernel is normalized, a fully
// opaque input stays fully opaque.
func BlurGaussian(src *image.NRGBA, radius int) *image.NRGBA {
	if radius <= 0 {
		return Clone(src)
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return Clone(src)
	}
	kernel := GaussianKernel(radius)

	// Horizontal pass into a float intermediate to avoid double quantization.
	tmp := make([]float64, w*h*4)
	for y := 0; y < h; y++ {
		row := src.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			var acc [4]float64
			for k := -radius; k <= radius; k++ {
				sx := clamp(x+k, 0, w-1)
				off := row + sx*4
				weight := kernel[k+radius]
				acc[0] += weight * float64(src.Pix[off])
				acc[1] += weight * float64(src.Pix[off+1])
				acc[2] += weight * float64(src.Pix[off+2])
				acc[3] += weight * float64(src.Pix[off+3])
			}
			out := (y*w + x) * 4
			tmp[out] = acc[0]
			tmp[out+1] = acc[1]
			tmp[out+2] = acc[2]
			tmp[out+3] = acc[3]
		}
	}

	// Vertical pass, quantizing once at the end.
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [4]float64
			for k := -radius; k <= radius; k++ {
				sy := clamp(y+k, 0, h-1)
				off := (sy*w + x) * 4
				weight := kernel[k+radius]
				acc[0] += weight * tmp[off]
				acc[1] += weight * tmp[off+1]
				acc[2] += weight * tmp[off+2]
				acc[3] += weight * tmp[off+3]
			}
			out := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				dst.Pix[out+c] = uint8(math.Round(clampF(acc[c], 0, 255)))
			}
		}
	}
	return dst
}

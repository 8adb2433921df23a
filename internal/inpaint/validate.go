package inpaint

import (
	"image"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// OutputVariance measures the color spread of an inference output: the sum
// of the per-channel population variances (Σ(x-mean)²/N) over R, G and B.
//
// A collapsed inference run tends to produce a near-solid-color patch, so a
// tiny variance is a cheap proxy for "the model did no useful work".
func OutputVariance(img *image.NRGBA) float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := float64(w * h)
	if n == 0 {
		return 0
	}

	var sum, sumSq [3]float64
	for y := 0; y < h; y++ {
		row := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			off := row + x*4
			for c := 0; c < 3; c++ {
				v := float64(img.Pix[off+c])
				sum[c] += v
				sumSq[c] += v * v
			}
		}
	}

	var total float64
	for c := 0; c < 3; c++ {
		mean := sum[c] / n
		total += sumSq[c]/n - mean*mean
	}
	return total
}

// ValidateOutput reports whether candidate clears the minimum color
// variance. Callers treat a failure as a quality warning, not an error: the
// pipeline has no fallback inpainting strategy, so the result is returned
// either way and the failure is only logged.
func ValidateOutput(candidate *image.NRGBA, minVariance float64) bool {
	return OutputVariance(candidate) >= minVariance
}

// MeanColorHex returns the average color of img as a CSS-style hex string,
// used in quality-warning log lines to make collapsed outputs recognizable
// at a glance ("#7f7f7f" reads as gray immediately).
func MeanColorHex(img *image.NRGBA) string {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := float64(w * h)
	if n == 0 {
		return "#000000"
	}

	var sum [3]float64
	for y := 0; y < h; y++ {
		row := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < w; x++ {
			off := row + x*4
			sum[0] += float64(img.Pix[off])
			sum[1] += float64(img.Pix[off+1])
			sum[2] += float64(img.Pix[off+2])
		}
	}

	c := colorful.Color{
		R: sum[0] / n / 255,
		G: sum[1] / n / 255,
		B: sum[2] / n / 255,
	}
	return c.Clamped().Hex()
}

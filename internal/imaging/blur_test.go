package imaging

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// createSolidImage builds a w x h buffer filled with a single color.
func createSolidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestGaussianKernel_Normalized(t *testing.T) {
	for _, radius := range []int{1, 2, 3, 5, 8, 15} {
		kernel := GaussianKernel(radius)

		if len(kernel) != 2*radius+1 {
			t.Errorf("radius %d: kernel size got %d, want %d", radius, len(kernel), 2*radius+1)
		}

		var sum float64
		for _, w := range kernel {
			if w <= 0 {
				t.Errorf("radius %d: non-positive weight %v", radius, w)
			}
			sum += w
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("radius %d: kernel sum got %v, want 1.0", radius, sum)
		}

		// Symmetric with the peak in the center.
		for i := 0; i < radius; i++ {
			if math.Abs(kernel[i]-kernel[len(kernel)-1-i]) > 1e-12 {
				t.Errorf("radius %d: kernel not symmetric at %d", radius, i)
			}
		}
		if kernel[radius] < kernel[0] {
			t.Errorf("radius %d: center weight %v below edge weight %v", radius, kernel[radius], kernel[0])
		}
	}
}

func TestGaussianKernel_ZeroRadius(t *testing.T) {
	kernel := GaussianKernel(0)
	if len(kernel) != 1 || kernel[0] != 1 {
		t.Errorf("got %v, want identity kernel [1]", kernel)
	}
}

func TestBlurGaussian_ConstantBufferUnchanged(t *testing.T) {
	img := createSolidImage(40, 30, color.NRGBA{R: 137, G: 42, B: 201, A: 255})

	blurred := BlurGaussian(img, 7)

	if got, want := blurred.Bounds(), img.Bounds(); got != want {
		t.Fatalf("bounds: got %v, want %v", got, want)
	}
	for i, p := range blurred.Pix {
		if p != img.Pix[i] {
			t.Fatalf("pixel byte %d changed: got %d, want %d", i, p, img.Pix[i])
		}
	}
}

func TestBlurGaussian_DoesNotMutateSource(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	img.SetNRGBA(8, 8, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	before := make([]uint8, len(img.Pix))
	copy(before, img.Pix)

	_ = BlurGaussian(img, 3)

	for i := range before {
		if img.Pix[i] != before[i] {
			t.Fatalf("source mutated at byte %d", i)
		}
	}
}

func TestBlurGaussian_SpreadsEnergy(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 21, 21))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	img.SetNRGBA(10, 10, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	blurred := BlurGaussian(img, 4)

	center := blurred.NRGBAAt(10, 10)
	neighbor := blurred.NRGBAAt(12, 10)
	if center.R == 255 {
		t.Error("center should lose intensity after blur")
	}
	if neighbor.R == 0 {
		t.Error("neighbor should gain intensity after blur")
	}
	if center.R < neighbor.R {
		t.Errorf("center %d should remain brighter than neighbor %d", center.R, neighbor.R)
	}
}

func TestBlurGaussian_EdgeReplication(t *testing.T) {
	// A buffer split into a white half and a black half. With edge
	// replication the white edge column must stay bright: zero padding
	// would darken it noticeably.
	img := image.NewNRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			v := uint8(0)
			if x < 20 {
				v = 255
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	blurred := BlurGaussian(img, 3)

	if got := blurred.NRGBAAt(0, 10).R; got != 255 {
		t.Errorf("left edge of uniform white region: got %d, want 255", got)
	}
	if got := blurred.NRGBAAt(39, 10).R; got != 0 {
		t.Errorf("right edge of uniform black region: got %d, want 0", got)
	}
}

func TestBlurGaussian_ZeroRadiusIsCopy(t *testing.T) {
	img := createSolidImage(8, 8, color.NRGBA{R: 9, G: 8, B: 7, A: 255})
	out := BlurGaussian(img, 0)
	if &out.Pix[0] == &img.Pix[0] {
		t.Error("zero-radius blur must still return a fresh buffer")
	}
	for i := range img.Pix {
		if out.Pix[i] != img.Pix[i] {
			t.Fatalf("byte %d differs", i)
		}
	}
}

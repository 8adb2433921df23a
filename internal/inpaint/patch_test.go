package inpaint

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badgewipe/badgewipe/internal/imaging"
)

func solidNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := imaging.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func rectMask(w, h int, box image.Rectangle) *image.NRGBA {
	mask := imaging.New(w, h)
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			mask.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return mask
}

func TestExtractPatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PatchPadding = 10

	img := solidNRGBA(200, 200, color.NRGBA{R: 80, G: 90, B: 100, A: 255})
	mask := rectMask(200, 200, image.Rect(50, 50, 70, 70))

	bundle, err := ExtractPatch(img, mask, cfg)
	require.NoError(t, err)

	assert.Equal(t, 40, bundle.Image.Bounds().Dx())
	assert.Equal(t, 40, bundle.Image.Bounds().Dy())
	assert.Equal(t, bundle.Image.Bounds(), bundle.Mask.Bounds())
	assert.Equal(t, 40, bundle.OffsetX)
	assert.Equal(t, 40, bundle.OffsetY)
}

func TestExtractPatchClampsAtImageEdge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PatchPadding = 30

	img := solidNRGBA(100, 100, color.NRGBA{A: 255})
	mask := rectMask(100, 100, image.Rect(0, 0, 20, 20))

	bundle, err := ExtractPatch(img, mask, cfg)
	require.NoError(t, err)

	assert.Equal(t, 0, bundle.OffsetX)
	assert.Equal(t, 0, bundle.OffsetY)
	assert.Equal(t, 50, bundle.Image.Bounds().Dx())
	assert.Equal(t, 50, bundle.Image.Bounds().Dy())
}

func TestExtractPatchEmptyMask(t *testing.T) {
	img := solidNRGBA(64, 64, color.NRGBA{A: 255})
	mask := imaging.New(64, 64)

	_, err := ExtractPatch(img, mask, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pixels above threshold")
}

func TestCompositePatchRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PatchPadding = 10

	full := solidNRGBA(200, 200, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	mask := rectMask(200, 200, image.Rect(50, 50, 70, 70))

	bundle, err := ExtractPatch(full, mask, cfg)
	require.NoError(t, err)

	inpainted := solidNRGBA(bundle.Image.Bounds().Dx(), bundle.Image.Bounds().Dy(),
		color.NRGBA{R: 200, G: 200, B: 200, A: 255})

	out, err := bundle.CompositePatch(full, inpainted)
	require.NoError(t, err)

	// Fully-masked interior takes the inpainted value; untouched regions keep
	// the original bytes.
	assert.EqualValues(t, 200, out.NRGBAAt(60, 60).R)
	assert.EqualValues(t, 10, out.NRGBAAt(5, 5).R)
	assert.EqualValues(t, 10, out.NRGBAAt(150, 150).R)

	// The source is never mutated.
	assert.EqualValues(t, 10, full.NRGBAAt(60, 60).R)
}

func TestCompositePatchDimensionMismatch(t *testing.T) {
	full := solidNRGBA(200, 200, color.NRGBA{A: 255})
	mask := rectMask(200, 200, image.Rect(50, 50, 70, 70))

	bundle, err := ExtractPatch(full, mask, DefaultConfig())
	require.NoError(t, err)

	wrong := solidNRGBA(8, 8, color.NRGBA{A: 255})
	_, err = bundle.CompositePatch(full, wrong)
	require.Error(t, err)
}

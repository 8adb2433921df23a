package inpaint

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/badgewipe/badgewipe/internal/detection"
	"github.com/badgewipe/badgewipe/internal/imaging"
)

func TestBuildFixedMask(t *testing.T) {
	cfg := DefaultConfig()
	bounds := image.Rect(0, 0, 512, 512)

	mask := BuildFixedMask(bounds, cfg)
	require.Equal(t, 512, mask.Bounds().Dx())
	require.Equal(t, 512, mask.Bounds().Dy())

	// Center of the fixed circle: 48px in from the bottom-right corner.
	center := mask.NRGBAAt(512-cfg.FixedOffsetRight, 512-cfg.FixedOffsetBottom)
	assert.EqualValues(t, 255, center.R, "mask center must be fully painted")

	corner := mask.NRGBAAt(10, 10)
	assert.EqualValues(t, 0, corner.R, "far corner must stay unpainted")
}

func TestBuildFixedMaskSmallImage(t *testing.T) {
	// The circle center lies outside a tiny image; the mask must clamp
	// instead of panicking and still paint whatever part of the circle fits.
	cfg := DefaultConfig()
	mask := BuildFixedMask(image.Rect(0, 0, 40, 40), cfg)
	require.Equal(t, 40, mask.Bounds().Dx())

	painted := false
	for i := 0; i < len(mask.Pix); i += 4 {
		if mask.Pix[i] > 0 {
			painted = true
			break
		}
	}
	assert.True(t, painted, "clamped circle should still touch the image")
}

func TestBuildDetectionMask(t *testing.T) {
	cfg := DefaultConfig()
	bounds := image.Rect(0, 0, 512, 512)
	det := &detection.Result{X: 200, Y: 200, Width: 64, Height: 64, Confidence: 0.9}

	mask := BuildDetectionMask(bounds, det, cfg)

	// Dilated square spans (190,190)-(274,274); its center survives the
	// feathering untouched.
	center := mask.NRGBAAt(232, 232)
	assert.EqualValues(t, 255, center.R)

	assert.EqualValues(t, 0, mask.NRGBAAt(0, 0).R)
	assert.EqualValues(t, 0, mask.NRGBAAt(400, 100).R)
}

func TestBuildDetectionMaskClampsToBounds(t *testing.T) {
	cfg := DefaultConfig()
	det := &detection.Result{X: 500, Y: 500, Width: 64, Height: 64, Confidence: 0.9}

	mask := BuildDetectionMask(image.Rect(0, 0, 512, 512), det, cfg)
	require.Equal(t, 512, mask.Bounds().Dx())

	// Interior of the clamped square; edge replication keeps it saturated.
	assert.EqualValues(t, 255, mask.NRGBAAt(508, 508).R)
}

func TestBuildDetectionMaskDilatedExtent(t *testing.T) {
	// With feathering disabled the painted square is exactly the estimated
	// badge box grown by the dilation on every side.
	cfg := DefaultConfig()
	cfg.BadgeSizeEstimate = 100
	cfg.MaskDilation = 10
	cfg.MaskFeatherRadius = 0

	det := &detection.Result{X: 100, Y: 100, Width: 64, Height: 64, Confidence: 0.9}
	mask := BuildDetectionMask(image.Rect(0, 0, 512, 512), det, cfg)

	box, ok := imaging.MaskBounds(mask, maskBinarizeThreshold)
	require.True(t, ok)
	assert.Equal(t, image.Rect(90, 90, 210, 210), box)
}

func TestMasksAreFeathered(t *testing.T) {
	cfg := DefaultConfig()
	det := &detection.Result{X: 200, Y: 200, Width: 64, Height: 64, Confidence: 0.9}
	mask := BuildDetectionMask(image.Rect(0, 0, 512, 512), det, cfg)

	// Walking out of the painted square must cross intermediate values, not
	// jump 255 -> 0.
	found := false
	for x := 232; x < 300; x++ {
		v := mask.NRGBAAt(x, 232).R
		if v > 0 && v < 255 {
			found = true
			break
		}
	}
	assert.True(t, found, "feathered mask must contain partial alpha values")
}

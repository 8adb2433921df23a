package inpaint

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputVariance(t *testing.T) {
	solid := solidNRGBA(32, 32, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	assert.InDelta(t, 0, OutputVariance(solid), 1e-9)

	// Half black, half white: per-channel variance is 127.5^2.
	split := solidNRGBA(32, 32, color.NRGBA{A: 255})
	for y := 0; y < 32; y++ {
		for x := 16; x < 32; x++ {
			split.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	assert.InDelta(t, 3*127.5*127.5, OutputVariance(split), 1e-6)
}

func TestValidateOutput(t *testing.T) {
	solid := solidNRGBA(16, 16, color.NRGBA{R: 77, G: 77, B: 77, A: 255})
	assert.False(t, ValidateOutput(solid, 100), "solid color must fail the variance floor")
	assert.True(t, ValidateOutput(solid, 0), "zero floor accepts anything")

	textured := solidNRGBA(16, 16, color.NRGBA{A: 255})
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if (x+y)%2 == 0 {
				textured.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
			}
		}
	}
	assert.True(t, ValidateOutput(textured, 100))
}

func TestMeanColorHex(t *testing.T) {
	red := solidNRGBA(4, 4, color.NRGBA{R: 255, A: 255})
	assert.Equal(t, "#ff0000", MeanColorHex(red))

	gray := solidNRGBA(4, 4, color.NRGBA{R: 128, G: 128, B: 128, A: 255})
	assert.Equal(t, "#808080", MeanColorHex(gray))
}

package inpaint

import (
	"fmt"
	"image"
	"math"

	"github.com/badgewipe/badgewipe/internal/imaging"
	"github.com/badgewipe/badgewipe/internal/onnx"
)

// Canonical tensor names used by the inpainting models.
const (
	TensorImage  = "image"
	TensorMask   = "mask"
	TensorOutput = "output"
)

// EncodeInputs converts an image/mask pair into the tensors the model
// consumes. Both buffers are independently resampled (bilinear) to
// inputSize x inputSize first.
//
// The image tensor has shape [1,3,S,S] in channel-major (NCHW) layout with
// RGB normalized to [0,1]. Pixels under the mask are pre-attenuated by
// (1 - maskValue), so the network receives an image with the badge already
// suppressed plus a separate [1,1,S,S] mask tensor holding the mask values
// themselves.
func EncodeInputs(img, mask *image.NRGBA, inputSize int) (imageTensor, maskTensor onnx.Tensor) {
	scaledImg := imaging.Resample(img, inputSize, inputSize)
	scaledMask := imaging.Resample(mask, inputSize, inputSize)

	size := inputSize * inputSize
	imgData := make([]float32, 3*size)
	maskData := make([]float32, size)

	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			idx := y*inputSize + x
			iOff := scaledImg.PixOffset(x, y)
			mOff := scaledMask.PixOffset(x, y)

			m := float32(scaledMask.Pix[mOff]) / 255.0
			maskData[idx] = m

			keep := 1 - m
			imgData[0*size+idx] = float32(scaledImg.Pix[iOff]) / 255.0 * keep
			imgData[1*size+idx] = float32(scaledImg.Pix[iOff+1]) / 255.0 * keep
			imgData[2*size+idx] = float32(scaledImg.Pix[iOff+2]) / 255.0 * keep
		}
	}

	s := int64(inputSize)
	imageTensor = onnx.Tensor{Data: imgData, Shape: []int64{1, 3, s, s}}
	maskTensor = onnx.Tensor{Data: maskData, Shape: []int64{1, 1, s, s}}
	return imageTensor, maskTensor
}

// outputRange classifies the value range an inference output arrived in.
// The model's raw output range is not contractually guaranteed, so it is
// detected at runtime from the actual min/max. Exactly four regimes exist;
// do not add heuristics beyond them.
type outputRange int

const (
	// rangeByte: values already ≈[0,255]; passed through with clamping.
	rangeByte outputRange = iota
	// rangeUnit: values in [0,1]; multiplied by 255.
	rangeUnit
	// rangeSigned: values in [-1,1]; mapped by (v+1)/2*255.
	rangeSigned
	// rangeUnknown: anything else; min-max rescaled to [0,255].
	rangeUnknown
)

// classifyRange maps observed min/max to an output regime. Boundaries are
// deliberately loose: unit ranges tolerate overshoot up to 1.5, the byte
// range tolerates [-8,263], matching the slop real models produce around
// their nominal range.
func classifyRange(min, max float64) outputRange {
	switch {
	case min >= -0.001 && max <= 1.5:
		return rangeUnit
	case min >= -1.5 && max <= 1.5:
		return rangeSigned
	case min >= -8 && max <= 263:
		return rangeByte
	default:
		return rangeUnknown
	}
}

// DecodeOutput converts a [1,3,H,W] float output tensor into an NRGBA
// buffer of targetW x targetH pixels.
//
// The tensor's value range is detected and normalized per classifyRange,
// every channel value is clamped to [0,255] and rounded half away from zero
// before the 8-bit write, and the decoded image is resampled from the
// model's H x W back to the target dimensions. Rounding mode matters here:
// the variance-based output validator sees these exact bytes.
func DecodeOutput(t onnx.Tensor, targetW, targetH int) (*image.NRGBA, error) {
	if len(t.Shape) != 4 || t.Shape[0] != 1 || t.Shape[1] != 3 {
		return nil, fmt.Errorf("unexpected output shape %v, want [1,3,H,W]", t.Shape)
	}
	h, w := int(t.Shape[2]), int(t.Shape[3])
	size := h * w
	if len(t.Data) != 3*size {
		return nil, fmt.Errorf("output data length %d does not match shape %v", len(t.Data), t.Shape)
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, v := range t.Data {
		f := float64(v)
		if f < minV {
			minV = f
		}
		if f > maxV {
			maxV = f
		}
	}

	regime := classifyRange(minV, maxV)
	span := maxV - minV
	toByte := func(v float64) uint8 {
		var scaled float64
		switch regime {
		case rangeByte:
			scaled = v
		case rangeUnit:
			scaled = v * 255
		case rangeSigned:
			scaled = (v + 1) / 2 * 255
		default:
			if span == 0 {
				scaled = 0
			} else {
				scaled = (v - minV) / span * 255
			}
		}
		if scaled < 0 {
			scaled = 0
		}
		if scaled > 255 {
			scaled = 255
		}
		return uint8(math.Round(scaled))
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			off := img.PixOffset(x, y)
			img.Pix[off] = toByte(float64(t.Data[idx]))
			img.Pix[off+1] = toByte(float64(t.Data[size+idx]))
			img.Pix[off+2] = toByte(float64(t.Data[2*size+idx]))
			img.Pix[off+3] = 0xff
		}
	}

	if w == targetW && h == targetH {
		return img, nil
	}
	return imaging.Resample(img, targetW, targetH), nil
}

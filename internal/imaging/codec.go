package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder

	"github.com/disintegration/imaging"
)

const (
	// MaxDecodeBytes is the largest encoded payload Decode accepts.
	MaxDecodeBytes = 64 << 20

	// MaxPixels is the largest decoded pixel count Decode accepts.
	// Checked against the image header before any pixel data is allocated.
	MaxPixels = 64 << 20
)

// Format identifies an output container for Encode.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// Decode parses encoded image bytes (PNG, JPEG, or GIF) into an NRGBA buffer.
//
// The payload size and the decoded dimensions are validated against
// MaxDecodeBytes and MaxPixels before the pixel data is decoded, so corrupt
// or oversized inputs fail fast with a descriptive error and no large
// allocations.
//
// The returned buffer is always a fresh NRGBA copy with bounds at (0,0) and
// stride 4*width, regardless of the source color model.
func Decode(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	if len(data) > MaxDecodeBytes {
		return nil, fmt.Errorf("image payload too large: %d bytes (limit %d)", len(data), MaxDecodeBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported or corrupt image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid %s dimensions %dx%d", format, cfg.Width, cfg.Height)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("image too large: %dx%d exceeds %d pixel limit", cfg.Width, cfg.Height, MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
	}
	return imaging.Clone(img), nil
}

// Encode serializes img into the requested container format.
// JPEG output uses quality 95.
func Encode(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
	return buf.Bytes(), nil
}

// SniffFormat reports the output format matching the encoded input bytes.
// JPEG input round-trips to JPEG; everything else is written as PNG.
func SniffFormat(data []byte) Format {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil && format == "jpeg" {
		return FormatJPEG
	}
	return FormatPNG
}

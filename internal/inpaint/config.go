package inpaint

import "fmt"

// Config holds the inpainting pipeline parameters.
type Config struct {
	// InputSize is the model's fixed square input resolution. Image and mask
	// are resampled to InputSize x InputSize before inference.
	InputSize int `yaml:"input_size"`

	// MaskDilation grows the mask rectangle (or circle radius) outward by
	// this many pixels on all sides before feathering.
	MaskDilation int `yaml:"mask_dilation"`

	// BadgeSizeEstimate is the assumed badge edge length in pixels. The
	// detection-anchored mask is sized by this constant rather than the
	// matched box dimensions, which are unreliable.
	BadgeSizeEstimate int `yaml:"badge_size_estimate"`

	// PatchPadding expands the patch crop beyond the mask bounding box.
	PatchPadding int `yaml:"patch_padding"`

	// MaskFeatherRadius is the Gaussian blur radius applied to the mask so
	// composited content blends without a hard seam.
	MaskFeatherRadius int `yaml:"mask_feather_radius"`

	// MinOutputVariance is the summed per-channel color variance below which
	// an inference output is flagged as degenerate.
	MinOutputVariance float64 `yaml:"min_output_variance"`

	// FixedOffsetRight and FixedOffsetBottom position the fixed-mode mask
	// center, measured from the bottom-right corner.
	FixedOffsetRight  int `yaml:"fixed_offset_right"`
	FixedOffsetBottom int `yaml:"fixed_offset_bottom"`

	// FixedBaseRadius is the fixed-mode mask radius before dilation.
	FixedBaseRadius int `yaml:"fixed_base_radius"`
}

// DefaultConfig returns the pipeline parameters tuned for the stock badge
// and a 512x512 inpainting model.
func DefaultConfig() Config {
	return Config{
		InputSize:         512,
		MaskDilation:      10,
		BadgeSizeEstimate: 64,
		PatchPadding:      32,
		MaskFeatherRadius: 8,
		MinOutputVariance: 100,
		FixedOffsetRight:  48,
		FixedOffsetBottom: 48,
		FixedBaseRadius:   24,
	}
}

// Validate checks the Config invariants.
func (c Config) Validate() error {
	positives := []struct {
		name  string
		value int
	}{
		{"input_size", c.InputSize},
		{"mask_dilation", c.MaskDilation},
		{"badge_size_estimate", c.BadgeSizeEstimate},
		{"patch_padding", c.PatchPadding},
		{"mask_feather_radius", c.MaskFeatherRadius},
		{"fixed_offset_right", c.FixedOffsetRight},
		{"fixed_offset_bottom", c.FixedOffsetBottom},
		{"fixed_base_radius", c.FixedBaseRadius},
	}
	for _, p := range positives {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.MinOutputVariance < 0 {
		return fmt.Errorf("min_output_variance must be non-negative, got %v", c.MinOutputVariance)
	}
	return nil
}

package detection

import (
	"fmt"
	"image"

	"github.com/badgewipe/badgewipe/internal/imaging"
)

// Config controls where and how aggressively the badge is searched for.
type Config struct {
	// ROIPercent is the fraction of the image width and height, anchored at
	// the bottom-right corner, that is searched. Must be in (0,1].
	ROIPercent float64 `yaml:"roi_percent"`

	// ConfidenceThreshold is the score at or above which a result counts as
	// a certain detection.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// PossibleThreshold is the score below which Detect returns nil.
	// Results in [PossibleThreshold, ConfidenceThreshold) are tentative.
	PossibleThreshold float64 `yaml:"possible_threshold"`

	// Scales lists the template scale factors to try, all positive.
	// Iterated in the given order; ties between scales keep the earlier one.
	Scales []float64 `yaml:"scales"`
}

// DefaultConfig returns the detection parameters tuned for the stock badge.
func DefaultConfig() Config {
	return Config{
		ROIPercent:          0.15,
		ConfidenceThreshold: 0.75,
		PossibleThreshold:   0.40,
		Scales:              []float64{0.5, 0.75, 1.0, 1.25, 1.5},
	}
}

// Validate checks the Config invariants.
func (c Config) Validate() error {
	if c.ROIPercent <= 0 || c.ROIPercent > 1 {
		return fmt.Errorf("roi_percent must be in (0,1], got %v", c.ROIPercent)
	}
	if c.PossibleThreshold < 0 || c.ConfidenceThreshold > 1 || c.PossibleThreshold > c.ConfidenceThreshold {
		return fmt.Errorf("thresholds must satisfy 0 <= possible (%v) <= confidence (%v) <= 1",
			c.PossibleThreshold, c.ConfidenceThreshold)
	}
	if len(c.Scales) == 0 {
		return fmt.Errorf("scales must not be empty")
	}
	for _, s := range c.Scales {
		if s <= 0 {
			return fmt.Errorf("scales must all be positive, got %v", s)
		}
	}
	return nil
}

// Result is a badge location in full-image coordinates.
type Result struct {
	// X, Y is the top-left corner of the matched region.
	X int `json:"x"`
	Y int `json:"y"`

	// Width, Height are the dimensions of the scaled template that produced
	// the best score. Matching box size is unreliable for mask sizing; the
	// inpainting mask uses a fixed badge-size estimate instead.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Confidence is the best NCC score, clamped to [0,1].
	Confidence float64 `json:"confidence"`
}

// Detected reports whether the result clears the certain-detection threshold.
// Results below it (but at or above PossibleThreshold) are tentative.
func (r *Result) Detected(cfg Config) bool {
	return r != nil && r.Confidence >= cfg.ConfidenceThreshold
}

// ComputeROI returns the bottom-right search rectangle for an image of the
// given dimensions: the right-most percent of the width by the bottom-most
// percent of the height, at least one pixel in each axis.
func ComputeROI(width, height int, percent float64) image.Rectangle {
	roiW := int(float64(width) * percent)
	roiH := int(float64(height) * percent)
	if roiW < 1 {
		roiW = 1
	}
	if roiH < 1 {
		roiH = 1
	}
	return image.Rect(width-roiW, height-roiH, width, height)
}

// Detect searches for the badge template in img and returns the best match,
// or nil when no candidate reaches cfg.PossibleThreshold.
//
// The template is tried at every configured scale; scales whose resized
// template exceeds the ROI in either axis are skipped (not an error). The
// best candidate across scales is tracked by strict greater-than, so ties
// keep the earlier scale. Returns nil (and no error) when the template is
// larger than the ROI at every scale.
func Detect(img *image.NRGBA, tmpl *Template, cfg Config) (*Result, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	if tmpl == nil {
		return nil, fmt.Errorf("nil template")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}

	b := img.Bounds()
	roi := ComputeROI(b.Dx(), b.Dy(), cfg.ROIPercent)
	roiLum, roiW, roiH := imaging.Luminance(imaging.Crop(img, roi))
	search := newPlane(roiLum, roiW, roiH)

	var best *Result
	for _, scale := range cfg.Scales {
		stats := tmpl.statsAtScale(scale)
		if stats == nil || stats.w > roiW || stats.h > roiH {
			continue
		}

		x, y, score := matchTemplate(search, stats)
		if score < 0 {
			continue
		}
		if best == nil || score > best.Confidence {
			best = &Result{
				X:          roi.Min.X + x,
				Y:          roi.Min.Y + y,
				Width:      stats.w,
				Height:     stats.h,
				Confidence: score,
			}
		}
	}

	if best == nil {
		return nil, nil
	}
	if best.Confidence > 1 {
		best.Confidence = 1
	}
	if best.Confidence < 0 {
		best.Confidence = 0
	}
	if best.Confidence < cfg.PossibleThreshold {
		return nil, nil
	}
	return best, nil
}

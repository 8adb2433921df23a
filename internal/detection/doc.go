// Package detection locates the attribution badge inside an image using
// multi-scale template matching.
//
// The search is restricted to a region of interest (ROI) anchored at the
// bottom-right corner of the image, where the badge is stamped. The reference
// template is rescaled across a configured list of scale factors and each
// scaled variant is slid over the ROI's luminance plane, scored by normalized
// cross-correlation (NCC). The global maximum across all scales becomes the
// detection candidate.
//
// # Scoring
//
// NCC scores window/template similarity independent of local brightness and
// contrast. Scores are clamped defensively to [0,1]:
//   - 1.0 = pixel-perfect correlation
//   - values near 0 = no structural resemblance
//
// Callers compare the returned confidence against two thresholds: a low
// "possible" threshold below which Detect returns nil, and a higher
// "confident" threshold used to distinguish a certain detection from a
// tentative one.
//
// # Performance Considerations
//
// Window statistics (mean and variance) come from summed-area tables, so each
// candidate window costs O(template pixels) for the correlation term only.
// Detection is still the most expensive CPU stage of the pipeline and is
// intended to run at most once per image; the pipeline serializes calls.
package detection

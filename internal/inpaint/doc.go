// Package inpaint removes the attribution badge from an image by masking the
// badge region and filling it with a learned inpainting model.
//
// The package provides the stages of the pipeline as standalone functions
// (mask construction, patch extraction, tensor encoding/decoding, output
// validation) and a Pipeline orchestrator that composes them around an
// inference engine.
//
// Two flows exist:
//
//   - Fixed-position: the whole frame is masked at the badge's known
//     bottom-right position, resized to the model input resolution, inpainted
//     and composited back. Simple, but large images lose detail to the
//     downsample.
//
//   - Patch-based: a padded patch around the masked region is cropped first,
//     so the model's fixed input resolution is spent on the badge's
//     neighborhood instead of the whole frame. Preferred for small badges in
//     large photos.
//
// A rejected output-quality check (near-zero color variance, the signature
// of a collapsed inference run) is logged but never fails the operation:
// with no alternative inpainting strategy available the pipeline returns its
// best effort rather than nothing.
package inpaint

// Package imaging provides the pixel-level building blocks for the badge
// removal pipeline: decoding and encoding at the byte boundary, bilinear
// resampling, separable Gaussian blur, mask geometry, and feathered alpha
// compositing.
//
// All operations work on *image.NRGBA buffers with four interleaved 8-bit
// channels (R,G,B,A), row-major, stride of exactly 4*width, and bounds
// anchored at (0,0). Buffers are treated as immutable values between pipeline
// stages: every function returns a freshly allocated buffer and never mutates
// its inputs.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner,
// X increasing rightward and Y increasing downward.
//
// # Mask Buffers
//
// A mask is an ordinary NRGBA buffer whose R channel encodes inpaint strength
// in [0,255] (0 = keep original, 255 = fully replace). G and B mirror R for
// visualization and A is always opaque.
//
// # Error Handling
//
// Only the byte-boundary functions (Decode, Encode) return errors; the pure
// numeric routines are total over valid buffers and panic-free by
// construction (sampling coordinates are clamped to the valid range).
package imaging

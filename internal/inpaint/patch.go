package inpaint

import (
	"fmt"
	"image"

	"github.com/badgewipe/badgewipe/internal/imaging"
)

// maskBinarizeThreshold separates "inpaint" from "keep" pixels when
// computing the patch bounding box from a feathered mask.
const maskBinarizeThreshold = 128

// PatchBundle is a cropped image/mask pair plus the offset needed to
// re-project processed results into the source image's coordinate space.
//
// Invariant (enforced at construction): OffsetX + Image width <= source
// width, and likewise for Y.
type PatchBundle struct {
	Image   *image.NRGBA
	Mask    *image.NRGBA
	OffsetX int
	OffsetY int
}

// ExtractPatch crops the region of img that inference needs to see: the
// tight bounding box of mask pixels above the binarization threshold,
// expanded by cfg.PatchPadding on all sides and clamped to the image bounds.
// Image and mask are cropped to the same box.
//
// An entirely sub-threshold mask is a caller error, since the mask builders
// always paint a region, and is reported as such rather than guessed around.
func ExtractPatch(img, mask *image.NRGBA, cfg Config) (*PatchBundle, error) {
	box, ok := imaging.MaskBounds(mask, maskBinarizeThreshold)
	if !ok {
		return nil, fmt.Errorf("mask has no pixels above threshold %d; mask builder contract violated", maskBinarizeThreshold)
	}

	bounds := img.Bounds()
	padded := image.Rect(
		box.Min.X-cfg.PatchPadding,
		box.Min.Y-cfg.PatchPadding,
		box.Max.X+cfg.PatchPadding,
		box.Max.Y+cfg.PatchPadding,
	).Intersect(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	return &PatchBundle{
		Image:   imaging.Crop(img, padded),
		Mask:    imaging.Crop(mask, padded),
		OffsetX: padded.Min.X,
		OffsetY: padded.Min.Y,
	}, nil
}

// CompositePatch re-inserts an inpainted patch into the full image using the
// bundle's feathered mask as per-pixel alpha. inpainted must have the same
// dimensions as the extracted patch.
func (b *PatchBundle) CompositePatch(full, inpainted *image.NRGBA) (*image.NRGBA, error) {
	pb := b.Image.Bounds()
	ib := inpainted.Bounds()
	if pb.Dx() != ib.Dx() || pb.Dy() != ib.Dy() {
		return nil, fmt.Errorf("inpainted patch is %dx%d, extracted patch is %dx%d",
			ib.Dx(), ib.Dy(), pb.Dx(), pb.Dy())
	}
	return imaging.CompositeFeathered(full, inpainted, b.Mask, b.OffsetX, b.OffsetY), nil
}

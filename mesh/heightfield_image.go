package mesh

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Image shades the field from black at its lowest height to white at its
// highest, one pixel per cell with +y up. Unresolved cells are transparent.
func (h *HeightField) Image() *image.NRGBA {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, z := range h.Heights {
		if math.IsNaN(z) {
			continue
		}
		lo = math.Min(lo, z)
		hi = math.Max(hi, z)
	}

	img := image.NewNRGBA(image.Rect(0, 0, h.Dims[0], h.Dims[1]))
	for y := 0; y < h.Dims[1]; y++ {
		for x := 0; x < h.Dims[0]; x++ {
			z := h.At(x, y)
			if math.IsNaN(z) {
				continue
			}
			shade := uint8(255)
			if hi > lo {
				shade = uint8(math.Round(255 * (z - lo) / (hi - lo)))
			}
			img.SetNRGBA(x, y, color.NRGBA{shade, shade, shade, 255})
		}
	}
	return imaging.FlipV(img)
}

package density

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"go.viam.com/raycloud/raycloud"
	"go.viam.com/raycloud/spatialmath"
	"go.viam.com/raycloud/utils"
)

// ViewDirection is the direction a render looks along.
type ViewDirection int

// The supported views.
const (
	ViewTop ViewDirection = iota
	ViewLeft
	ViewRight
	ViewFront
	ViewBack
)

// ParseViewDirection converts a view name such as "top" to a ViewDirection.
func ParseViewDirection(name string) (ViewDirection, error) {
	switch name {
	case "top":
		return ViewTop, nil
	case "left":
		return ViewLeft, nil
	case "right":
		return ViewRight, nil
	case "front":
		return ViewFront, nil
	case "back":
		return ViewBack, nil
	}
	return 0, errors.Errorf("unknown view direction %q", name)
}

// Style is how summed densities become pixel colours.
type Style int

// The render styles.
const (
	// StyleGrey shades density from black to white.
	StyleGrey Style = iota
	// StyleGradient shades density through red, green and blue, blending the
	// lowest densities to black.
	StyleGradient
)

// ParseStyle converts "grey" or "gradient" to a Style.
func ParseStyle(name string) (Style, error) {
	switch name {
	case "grey", "gray":
		return StyleGrey, nil
	case "gradient":
		return StyleGradient, nil
	}
	return 0, errors.Errorf("unknown render style %q", name)
}

// RenderOptions configures Render.
type RenderOptions struct {
	View       ViewDirection
	Style      Style
	PixelWidth float64
	// MinRays is passed to AddNeighbourPriors. Zero or less skips priors.
	MinRays   float32
	ChunkSize int
}

// Render projects the densities of the rays of src inside bounds onto the plane
// facing the view. Each pixel is the sum of the voxel densities along its
// column, scaled so that the mean plus two standard deviations of the non-empty
// pixels is full brightness. Pixels no ray reached are transparent. Row 0 is
// the top of the view.
func Render(src raycloud.Source, bounds spatialmath.Cuboid, opts RenderOptions, logger golog.Logger) (*image.NRGBA, error) {
	priors := opts.MinRays > 0
	vol, err := NewVolumeForBounds(bounds, opts.PixelWidth, priors)
	if err != nil {
		return nil, err
	}
	if err := vol.CalculateDensities(src, opts.ChunkSize); err != nil {
		return nil, err
	}
	if priors {
		vol.AddNeighbourPriors(opts.MinRays, logger)
	}

	axis, flipX := 2, false
	switch opts.View {
	case ViewTop:
	case ViewLeft:
		axis, flipX = 0, true
	case ViewRight:
		axis = 0
	case ViewFront:
		axis = 1
	case ViewBack:
		axis, flipX = 1, true
	}
	ax1 := [3]int{1, 0, 0}[axis]
	ax2 := [3]int{2, 2, 1}[axis]
	m := vol.Margin
	width, height, depth := vol.Dims[ax1]-2*m, vol.Dims[ax2]-2*m, vol.Dims[axis]-2*m
	logger.Infow("rendering density image", "width", width, "height", height)

	sums := make([]float64, width*height)
	utils.ParallelForEachPixel(image.Point{X: width, Y: height}, func(x, y int) {
		var ind [3]int
		ind[ax1], ind[ax2] = x+m, y+m
		total := 0.0
		for z := 0; z < depth; z++ {
			ind[axis] = z + m
			total += vol.voxels[ind[0]+vol.Dims[0]*(ind[1]+vol.Dims[1]*ind[2])].Density()
		}
		sums[x+width*y] = total
	})

	scale := brightnessScale(sums)
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			total := sums[x+width*y]
			if total == 0 {
				continue
			}
			img.SetNRGBA(x, y, shade(total/scale, opts.Style))
		}
	}
	// image rows grow downwards, cloud axes grow upwards
	out := imaging.FlipV(img)
	if flipX {
		out = imaging.FlipH(out)
	}
	return out, nil
}

// brightnessScale is the mean plus two standard deviations of the non-zero sums.
func brightnessScale(sums []float64) float64 {
	var nonZero []float64
	for _, s := range sums {
		if s > 0 {
			nonZero = append(nonZero, s)
		}
	}
	if len(nonZero) == 0 {
		return 1
	}
	mean, sd := stat.PopMeanStdDev(nonZero, nil)
	return mean + 2*sd
}

func shade(v float64, style Style) color.NRGBA {
	var r, g, b float64
	switch style {
	case StyleGradient:
		r, g, b = redGreenBlue(v)
		if v < 0.05 {
			r, g, b = r*20*v, g*20*v, b*20*v
		}
	default:
		r, g, b = v, v, v
	}
	return color.NRGBA{R: toByte(r), G: toByte(g), B: toByte(b), A: 255}
}

// redGreenBlue maps [0, 1] through red at 0, green at 0.5 and blue at 1.
func redGreenBlue(v float64) (float64, float64, float64) {
	v = utils.Clamp(v, 0, 1)
	return math.Max(0, 1-2*v), 1 - math.Abs(2*v-1), math.Max(0, 2*v-1)
}

func toByte(v float64) uint8 {
	return uint8(utils.Clamp(v*255, 0, 255))
}

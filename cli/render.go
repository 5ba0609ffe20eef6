package cli

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/raycloud/density"
	"go.viam.com/raycloud/mesh"
	"go.viam.com/raycloud/raycloud"
	"go.viam.com/raycloud/spatialmath"
)

// RenderAction renders the density of a ray cloud, viewed along one axis, to an image.
func RenderAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 2)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	cloudPath, imagePath := args[0], args[1]
	view, err := density.ParseViewDirection(c.String(renderFlagView))
	if err != nil {
		return err
	}
	style, err := density.ParseStyle(c.String(renderFlagStyle))
	if err != nil {
		return err
	}
	if err := checkOutput(cloudPath, imagePath); err != nil {
		return err
	}

	info, err := env.readInfo(c, cloudPath)
	if err != nil {
		return err
	}
	if info.NumBounded == 0 {
		return errors.Wrapf(raycloud.ErrEmptyCloud, "rendering %s", cloudPath)
	}

	opts := env.cfg.RenderOptions(view, style)
	if opts.PixelWidth == 0 {
		spacing, err := env.estimateSpacing(c, cloudPath)
		if err != nil {
			return err
		}
		opts.PixelWidth = env.cfg.PixelWidthForSpacing(spacing)
	}

	src, err := raycloud.NewSourceForFile(cloudPath, env.lasOrigin)
	if err != nil {
		return err
	}
	var img *image.NRGBA
	if err := env.steps.Run(c.Context, "rendering densities", func() error {
		var err error
		img, err = density.Render(src, info.Ends, opts, env.logger)
		return err
	}); err != nil {
		return err
	}
	if err := imaging.Save(img, imagePath); err != nil {
		return errors.Wrapf(err, "saving %s", imagePath)
	}
	fmt.Fprintf(c.App.Writer, "%s: %dx%d pixels of width %g\n", imagePath, img.Bounds().Dx(), img.Bounds().Dy(), opts.PixelWidth)
	return nil
}

// HeightFieldAction renders the surface heights of a mesh, seen from above, to
// a greyscale image.
func HeightFieldAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 2)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	meshPath, imagePath := args[0], args[1]
	mode, err := mesh.ParseHeightMode(c.String(heightFieldFlagMode))
	if err != nil {
		return err
	}
	width := c.Float64(heightFieldFlagWidth)
	if width == 0 {
		width = env.cfg.Mesh.VoxelWidth
	}
	if err := checkOutput(meshPath, imagePath); err != nil {
		return err
	}

	var field *mesh.HeightField
	if err := env.steps.Run(c.Context, "sampling "+filepath.Base(meshPath), func() error {
		m, err := spatialmath.NewMeshFromPLYFile(meshPath)
		if err != nil {
			return err
		}
		opts := env.cfg.MeshOptions()
		opts.Progress = env.steps.Progress()
		classifier, err := mesh.NewClassifier(m, opts, env.logger)
		if err != nil {
			return err
		}
		// pad vertically so flat meshes still cross every cast
		box := m.Bounds()
		box.Min.Z -= width
		box.Max.Z += width
		field, err = classifier.ToHeightField(box, width, mode)
		if errors.Is(err, mesh.ErrUnresolvedCells) {
			return nil
		}
		return err
	}); err != nil {
		return err
	}

	img := field.Image()
	if err := imaging.Save(img, imagePath); err != nil {
		return errors.Wrapf(err, "saving %s", imagePath)
	}
	fmt.Fprintf(c.App.Writer, "%s: %dx%d cells, %d unresolved\n", imagePath, img.Bounds().Dx(), img.Bounds().Dy(), len(field.Unresolved))
	return nil
}

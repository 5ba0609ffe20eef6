package cli

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/raycloud/raycloud"
	"go.viam.com/raycloud/spatialmath"
	"go.viam.com/raycloud/utils"
	"go.viam.com/raycloud/vis"
)

// InfoAction prints a summary of a ray cloud.
func InfoAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	info, err := env.readInfo(c, args[0])
	if err != nil {
		return err
	}
	printInfo(c.App.Writer, info)
	return nil
}

func (env *actionEnv) readInfo(c *cli.Context, path string) (raycloud.Info, error) {
	src, err := raycloud.NewSourceForFile(path, env.lasOrigin)
	if err != nil {
		return raycloud.Info{}, err
	}
	var info raycloud.Info
	err = env.steps.Run(c.Context, "reading "+filepath.Base(path), func() error {
		var err error
		info, err = raycloud.ReadInfo(src, env.cfg.ChunkSize)
		return err
	})
	return info, err
}

func printInfo(out io.Writer, info raycloud.Info) {
	fmt.Fprintf(out, "rays: %d (bounded %d, unbounded %d)\n", info.NumRays(), info.NumBounded, info.NumUnbounded)
	if info.NumRays() == 0 {
		return
	}
	printBox := func(name string, box spatialmath.Cuboid) {
		if box.IsEmpty() {
			fmt.Fprintf(out, "%s: none\n", name)
			return
		}
		fmt.Fprintf(out, "%s: %v to %v\n", name, box.Min, box.Max)
	}
	printBox("ends", info.Ends)
	printBox("starts", info.Starts)
	printBox("rays", info.Rays)
	fmt.Fprintf(out, "time: %.6f to %.6f\n", info.MinTime, info.MaxTime)
}

// SpacingAction prints the estimated point spacing of a ray cloud.
func SpacingAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	spacing, err := env.estimateSpacing(c, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%g\n", spacing)
	return nil
}

func (env *actionEnv) estimateSpacing(c *cli.Context, path string) (float64, error) {
	info, err := env.readInfo(c, path)
	if err != nil {
		return 0, err
	}
	src, err := raycloud.NewSourceForFile(path, env.lasOrigin)
	if err != nil {
		return 0, err
	}
	var spacing float64
	err = env.steps.Run(c.Context, "estimating point spacing", func() error {
		var err error
		spacing, err = raycloud.EstimatePointSpacingFromSource(src, info.Ends, info.NumBounded, env.cfg.SpacingOptions(), env.logger)
		return err
	})
	return spacing, err
}

// DecimateAction keeps the first ray ending in each voxel.
func DecimateAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 2)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	in, out := args[0], args[1]
	if err := checkOutput(in, out); err != nil {
		return err
	}
	src, err := raycloud.NewSourceForFile(in, env.lasOrigin)
	if err != nil {
		return err
	}
	dst, err := raycloud.NewWriterForFile(out)
	if err != nil {
		return err
	}
	return env.steps.Run(c.Context, "decimating "+filepath.Base(in), func() error {
		return raycloud.DecimateStream(src, dst, c.Float64(decimateFlagWidth), env.cfg.ChunkSize)
	})
}

func saveCloud(cloud *raycloud.Cloud, path string) error {
	w, err := raycloud.NewWriterForFile(path)
	if err != nil {
		return err
	}
	return errors.Wrapf(cloud.Save(w), "saving %s", path)
}

// SplitGridAction tiles a ray cloud by ray end into one file per grid cell.
func SplitGridAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	cloudPath := args[0]
	cellWidth, err := vectorFromValues(splitFlagCell, c.Float64Slice(splitFlagCell))
	if err != nil {
		return err
	}
	splitter, err := raycloud.NewGridSplitter(cellWidth, c.Float64(splitFlagOverlap))
	if err != nil {
		return err
	}
	src, err := raycloud.NewSourceForFile(cloudPath, env.lasOrigin)
	if err != nil {
		return err
	}

	base := trimExt(cloudPath)
	cellPath := func(cell raycloud.GridCell) string {
		return fmt.Sprintf("%s_%s.ply", base, cell)
	}
	var counts map[raycloud.GridCell]int
	if err := env.steps.Run(c.Context, "splitting "+filepath.Base(cloudPath), func() error {
		var err error
		counts, err = raycloud.SplitGridStream(src, splitter, env.cfg.ChunkSize, func(cell raycloud.GridCell) (raycloud.Writer, error) {
			return raycloud.NewPLYWriter(cellPath(cell))
		})
		return err
	}); err != nil {
		return err
	}
	for _, cell := range raycloud.SortedCells(counts) {
		fmt.Fprintf(c.App.Writer, "%s: %d rays\n", cellPath(cell), counts[cell])
	}
	return nil
}

// SurfelsAction fits a surfel to the neighbourhood of every bounded ray end and
// writes the cloud with each fitted ray coloured by its normal.
func SurfelsAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 2)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	in, out := args[0], args[1]
	if err := checkOutput(in, out); err != nil {
		return err
	}
	src, err := raycloud.NewSourceForFile(in, env.lasOrigin)
	if err != nil {
		return err
	}
	cloud := raycloud.New()
	if err := env.steps.Run(c.Context, "loading "+filepath.Base(in), func() error {
		return cloud.Load(src)
	}); err != nil {
		return err
	}

	var surfels []raycloud.Surfel
	if err := env.steps.Run(c.Context, "fitting surfels", func() error {
		opts := env.cfg.SurfelOptions()
		opts.Drawer = vis.NewLogDrawer(env.logger)
		opts.Progress = env.steps.Progress()
		var err error
		surfels, err = cloud.Surfels(c.Context, opts, env.logger)
		return err
	}); err != nil {
		return err
	}

	valid, bounded := 0, 0
	for i, s := range surfels {
		if cloud.Bounded(i) {
			bounded++
		}
		if !s.Valid {
			continue
		}
		valid++
		r := cloud.Ray(i)
		r.Color = normalColour(s.Normal, r.Color.A)
		cloud.SetRay(i, r)
	}
	if err := saveCloud(cloud, out); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "surfels: %d valid, %d skipped\n", valid, bounded-valid)
	return nil
}

// normalColour maps each component of a unit normal from [-1, 1] to [0, 255].
func normalColour(n r3.Vector, alpha uint8) color.NRGBA {
	channel := func(v float64) uint8 {
		return uint8(math.Round(utils.Clamp((v+1)/2, 0, 1) * 255))
	}
	return color.NRGBA{R: channel(n.X), G: channel(n.Y), B: channel(n.Z), A: alpha}
}

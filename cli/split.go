package cli

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"go.viam.com/raycloud/mesh"
	"go.viam.com/raycloud/raycloud"
	"go.viam.com/raycloud/spatialmath"
	"go.viam.com/raycloud/vis"
)

// splitPaths returns <cloud>_inside.ply and <cloud>_outside.ply, checking
// neither overwrites the cloud.
func splitPaths(cloudPath string) (string, string, error) {
	base := trimExt(cloudPath)
	insidePath, outsidePath := base+"_inside.ply", base+"_outside.ply"
	for _, out := range []string{insidePath, outsidePath} {
		if err := checkOutput(cloudPath, out); err != nil {
			return "", "", err
		}
	}
	return insidePath, outsidePath, nil
}

// splitTwoWays streams the cloud into <cloud>_inside.ply, for rays where
// outside is false, and <cloud>_outside.ply.
func (env *actionEnv) splitTwoWays(c *cli.Context, cloudPath string, outside func(r raycloud.Ray) bool) error {
	insidePath, outsidePath, err := splitPaths(cloudPath)
	if err != nil {
		return err
	}
	src, err := raycloud.NewSourceForFile(cloudPath, env.lasOrigin)
	if err != nil {
		return err
	}
	var numInside, numOutside int
	if err := env.steps.Run(c.Context, "splitting "+filepath.Base(cloudPath), func() error {
		inside, err := raycloud.NewPLYWriter(insidePath)
		if err != nil {
			return err
		}
		out, err := raycloud.NewPLYWriter(outsidePath)
		if err != nil {
			goutils.UncheckedError(inside.Close())
			return err
		}
		return raycloud.SplitStream(src, inside, out, func(r raycloud.Ray) bool {
			if outside(r) {
				numOutside++
				return true
			}
			numInside++
			return false
		}, env.cfg.ChunkSize)
	}); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %d rays\n%s: %d rays\n", insidePath, numInside, outsidePath, numOutside)
	return nil
}

// vector3 accepts exactly three values.
func vector3(name string, values []float64) (r3.Vector, error) {
	if len(values) != 3 {
		return r3.Vector{}, errors.Errorf("%s takes 3 values, got %d", name, len(values))
	}
	return r3.Vector{X: values[0], Y: values[1], Z: values[2]}, nil
}

func nonZero(name string, v r3.Vector) (r3.Vector, error) {
	if v.Norm2() == 0 {
		return r3.Vector{}, errors.Errorf("%s must not be zero", name)
	}
	return v, nil
}

// SplitMeshAction splits a ray cloud by whether its ends lie inside a closed mesh.
func SplitMeshAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 2)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	cloudPath, meshPath := args[0], args[1]
	insidePath, outsidePath, err := splitPaths(cloudPath)
	if err != nil {
		return err
	}

	src, err := raycloud.NewSourceForFile(cloudPath, env.lasOrigin)
	if err != nil {
		return err
	}
	cloud := raycloud.New()
	if err := env.steps.Run(c.Context, "loading "+filepath.Base(cloudPath), func() error {
		return cloud.Load(src)
	}); err != nil {
		return err
	}

	var inside, outside *raycloud.Cloud
	if err := env.steps.Run(c.Context, "classifying against "+filepath.Base(meshPath), func() error {
		m, err := spatialmath.NewMeshFromPLYFile(meshPath)
		if err != nil {
			return err
		}
		opts := env.cfg.MeshOptions()
		opts.Drawer = vis.NewLogDrawer(env.logger)
		opts.Progress = env.steps.Progress()
		classifier, err := mesh.NewClassifier(m, opts, env.logger)
		if err != nil {
			return err
		}
		inside, outside, err = classifier.SplitCloud(cloud, c.Float64(splitFlagOffset))
		return err
	}); err != nil {
		return err
	}

	if err := env.steps.Run(c.Context, "writing", func() error {
		if err := saveCloud(inside, insidePath); err != nil {
			return err
		}
		return saveCloud(outside, outsidePath)
	}); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s: %d rays\n%s: %d rays\n", insidePath, inside.Len(), outsidePath, outside.Len())
	return nil
}

// SplitPlaneAction splits a ray cloud by ray end around the plane through the
// given point, perpendicular to the direction from the origin to it.
func SplitPlaneAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	point, err := vector3(splitFlagPoint, c.Float64Slice(splitFlagPoint))
	if err != nil {
		return err
	}
	if point, err = nonZero(splitFlagPoint, point); err != nil {
		return err
	}
	return env.splitTwoWays(c, args[0], raycloud.EndAbovePlane(point, point))
}

// SplitTimeAction splits a ray cloud at a time, or at a percentage of the way
// through the cloud's time span.
func SplitTimeAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	threshold := c.Float64(splitFlagTime)
	if c.Bool(splitFlagPercent) {
		info, err := env.readInfo(c, args[0])
		if err != nil {
			return err
		}
		if info.NumRays() == 0 {
			return errors.Wrapf(raycloud.ErrEmptyCloud, "splitting %s", args[0])
		}
		span := info.MaxTime - info.MinTime
		threshold = info.MinTime + span*threshold/100
		env.logger.Infow("splitting by time", "threshold", threshold, "span", span)
	}
	return env.splitTwoWays(c, args[0], raycloud.TimeAfter(threshold))
}

// SplitBoxAction keeps rays ending inside an axis aligned box inside.
func SplitBoxAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	radius, err := vector3(splitFlagRadius, c.Float64Slice(splitFlagRadius))
	if err != nil {
		return err
	}
	if radius.X <= 0 || radius.Y <= 0 || radius.Z <= 0 {
		return errors.Errorf("%s must be positive, got %v", splitFlagRadius, radius)
	}
	centre, err := vectorFromValues(splitFlagCentre, c.Float64Slice(splitFlagCentre))
	if err != nil {
		return err
	}
	box := spatialmath.NewCuboid(centre.Sub(radius), centre.Add(radius))
	return env.splitTwoWays(c, args[0], raycloud.EndOutside(box))
}

func segmentFlags(c *cli.Context) (r3.Vector, r3.Vector, float64, error) {
	start, err := vector3(splitFlagStart, c.Float64Slice(splitFlagStart))
	if err != nil {
		return r3.Vector{}, r3.Vector{}, 0, err
	}
	end, err := vector3(splitFlagEnd, c.Float64Slice(splitFlagEnd))
	if err != nil {
		return r3.Vector{}, r3.Vector{}, 0, err
	}
	radius := c.Float64(splitFlagRadius)
	if !(radius > 0) {
		return r3.Vector{}, r3.Vector{}, 0, errors.Errorf("%s must be positive, got %v", splitFlagRadius, radius)
	}
	return start, end, radius, nil
}

// SplitTubeAction keeps rays ending inside a flat capped cylinder inside.
func SplitTubeAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	start, end, radius, err := segmentFlags(c)
	if err != nil {
		return err
	}
	if start == end {
		return errors.New("a tube needs distinct start and end points")
	}
	return env.splitTwoWays(c, args[0], raycloud.EndOutsideCylinder(start, end, radius))
}

// SplitCapsuleAction keeps rays ending within a distance of a segment inside.
func SplitCapsuleAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	start, end, radius, err := segmentFlags(c)
	if err != nil {
		return err
	}
	return env.splitTwoWays(c, args[0], raycloud.EndOutsideCapsule(start, end, radius))
}

// SplitAlphaAction splits by ray alpha. The default of zero separates
// unbounded rays (inside) from bounded ones.
func SplitAlphaAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	alpha := c.Float64(splitFlagAlpha)
	if alpha < 0 || alpha > 1 {
		return errors.Errorf("%s must be in [0, 1], got %v", splitFlagAlpha, alpha)
	}
	return env.splitTwoWays(c, args[0], raycloud.AlphaAbove(alpha))
}

// SplitRangeAction splits out rays longer than a length.
func SplitRangeAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	length := c.Float64(splitFlagLength)
	if length < 0 {
		return errors.Errorf("%s must not be negative, got %v", splitFlagLength, length)
	}
	return env.splitTwoWays(c, args[0], raycloud.LongerThan(length))
}

// SplitRayDirAction splits out rays pointing within a cone around a direction.
// The length of the direction sets the cone: 0.8 is about 37 degrees.
func SplitRayDirAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	dir, err := vector3(splitFlagDirection, c.Float64Slice(splitFlagDirection))
	if err != nil {
		return err
	}
	if dir, err = nonZero(splitFlagDirection, dir); err != nil {
		return err
	}
	if dir.Norm() > 1 {
		return errors.Errorf("%s must be no longer than 1, got %v", splitFlagDirection, dir)
	}
	return env.splitTwoWays(c, args[0], raycloud.DirectionBeyond(dir))
}

// SplitColourAction splits out rays whose colour, channels in [0, 1], lies
// beyond the plane through the given colour.
func SplitColourAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	col, err := vector3(splitFlagColour, c.Float64Slice(splitFlagColour))
	if err != nil {
		return err
	}
	if col, err = nonZero(splitFlagColour, col); err != nil {
		return err
	}
	for _, v := range []float64{col.X, col.Y, col.Z} {
		if v < 0 || v > 1 {
			return errors.Errorf("%s channels must be in [0, 1], got %v", splitFlagColour, col)
		}
	}
	return env.splitTwoWays(c, args[0], raycloud.ColourBeyond(col))
}

// SplitSingleColourAction keeps rays of exactly one RGB colour, channels in
// [0, 255], inside.
func SplitSingleColourAction(c *cli.Context) error {
	env, args, err := newActionEnv(c, 1)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(env.close)
	col, err := vector3(splitFlagColour, c.Float64Slice(splitFlagColour))
	if err != nil {
		return err
	}
	var rgb [3]uint8
	for i, v := range []float64{col.X, col.Y, col.Z} {
		if v < 0 || v > 255 || v != math.Trunc(v) {
			return errors.Errorf("%s channels must be whole numbers in [0, 255], got %v", splitFlagColour, col)
		}
		rgb[i] = uint8(v)
	}
	return env.splitTwoWays(c, args[0], raycloud.ColourOtherThan(color.NRGBA{R: rgb[0], G: rgb[1], B: rgb[2]}))
}

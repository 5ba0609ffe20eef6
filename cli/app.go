// Package cli is the raycloud command line: thin actions over the ray cloud,
// mesh and density packages.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagConfig      = "config"
	generalFlagDebug       = "debug"
	generalFlagQuiet       = "quiet"
	generalFlagLASOrigin   = "las-origin"
	generalFlagMetricsFile = "metrics-file"

	decimateFlagWidth = "width"

	splitFlagOffset    = "offset"
	splitFlagCell      = "cell"
	splitFlagOverlap   = "overlap"
	splitFlagPoint     = "point"
	splitFlagTime      = "time"
	splitFlagPercent   = "percent"
	splitFlagRadius    = "radius"
	splitFlagCentre    = "centre"
	splitFlagStart     = "start"
	splitFlagEnd       = "end"
	splitFlagAlpha     = "alpha"
	splitFlagLength    = "length"
	splitFlagDirection = "direction"
	splitFlagColour    = "colour"

	renderFlagView  = "view"
	renderFlagStyle = "style"

	heightFieldFlagWidth = "width"
	heightFieldFlagMode  = "mode"
)

var app = &cli.App{
	Name:            "raycloud",
	Usage:           "inspect, split, decimate and render ray clouds",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:      generalFlagConfig,
			Aliases:   []string{"c"},
			Usage:     "load configuration from `FILE`",
			TakesFile: true,
		},
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.BoolFlag{
			Name:    generalFlagQuiet,
			Aliases: []string{"q"},
			Usage:   "log progress instead of drawing spinners",
		},
		&cli.Float64SliceFlag{
			Name:  generalFlagLASOrigin,
			Usage: "sensor origin `X,Y,Z` given to every ray read from a LAS file",
		},
		&cli.StringFlag{
			Name:      generalFlagMetricsFile,
			Usage:     "write prometheus metrics to `FILE` when the command finishes",
			TakesFile: true,
		},
	},
	After: writeMetrics,
	Commands: []*cli.Command{
		{
			Name:      "info",
			Usage:     "summarise a ray cloud",
			ArgsUsage: "<cloud>",
			Action:    InfoAction,
		},
		{
			Name:      "spacing",
			Usage:     "estimate the spacing between the points of a ray cloud",
			ArgsUsage: "<cloud>",
			Action:    SpacingAction,
		},
		{
			Name:      "decimate",
			Usage:     "keep one ray per voxel",
			ArgsUsage: "<cloud> <output>",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:     decimateFlagWidth,
					Usage:    "voxel width in cloud units",
					Required: true,
				},
			},
			Action: DecimateAction,
		},
		{
			Name:            "split",
			Usage:           "split a ray cloud into <cloud>_inside.ply and <cloud>_outside.ply, or into tiles",
			HideHelpCommand: true,
			Subcommands: []*cli.Command{
				{
					Name:      "mesh",
					Usage:     "split by a closed mesh into <cloud>_inside.ply and <cloud>_outside.ply",
					ArgsUsage: "<cloud> <mesh.ply>",
					Flags: []cli.Flag{
						&cli.Float64Flag{
							Name:  splitFlagOffset,
							Usage: "move the surface outwards (positive) or inwards (negative) by this distance",
						},
					},
					Action: SplitMeshAction,
				},
				{
					Name:      "plane",
					Usage:     "split by ray end around the plane through `X,Y,Z` facing away from the origin",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64SliceFlag{
							Name:     splitFlagPoint,
							Usage:    "point `X,Y,Z` on the plane, also its normal",
							Required: true,
						},
					},
					Action: SplitPlaneAction,
				},
				{
					Name:      "time",
					Usage:     "split out rays later than a time",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64Flag{
							Name:     splitFlagTime,
							Usage:    "time stamp, or a percentage of the time span with --percent",
							Required: true,
						},
						&cli.BoolFlag{
							Name:  splitFlagPercent,
							Usage: "read --time as a percentage of the way from the first to the last ray",
						},
					},
					Action: SplitTimeAction,
				},
				{
					Name:      "box",
					Usage:     "keep rays ending inside an axis aligned box inside",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64SliceFlag{
							Name:     splitFlagRadius,
							Usage:    "half widths `X,Y,Z` of the box",
							Required: true,
						},
						&cli.Float64SliceFlag{
							Name:  splitFlagCentre,
							Usage: "box centre `X,Y,Z`, the origin by default",
						},
					},
					Action: SplitBoxAction,
				},
				{
					Name:      "tube",
					Usage:     "keep rays ending inside a cylinder inside",
					ArgsUsage: "<cloud>",
					Flags:     segmentFlagDefs(),
					Action:    SplitTubeAction,
				},
				{
					Name:      "capsule",
					Usage:     "keep rays ending within a distance of a segment inside",
					ArgsUsage: "<cloud>",
					Flags:     segmentFlagDefs(),
					Action:    SplitCapsuleAction,
				},
				{
					Name:      "alpha",
					Usage:     "split out rays with a higher alpha; the default separates unbounded rays",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64Flag{
							Name:  splitFlagAlpha,
							Usage: "alpha threshold in [0, 1]",
						},
					},
					Action: SplitAlphaAction,
				},
				{
					Name:      "range",
					Usage:     "split out rays longer than a length",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64Flag{
							Name:     splitFlagLength,
							Usage:    "ray length",
							Required: true,
						},
					},
					Action: SplitRangeAction,
				},
				{
					Name:      "raydir",
					Usage:     "split out rays pointing along a direction",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64SliceFlag{
							Name:     splitFlagDirection,
							Usage:    "direction `X,Y,Z` no longer than 1; shorter is a wider cone",
							Required: true,
						},
					},
					Action: SplitRayDirAction,
				},
				{
					Name:      "colour",
					Usage:     "split out rays whose colour lies past a colour",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64SliceFlag{
							Name:     splitFlagColour,
							Usage:    "colour `R,G,B`, channels in [0, 1]",
							Required: true,
						},
					},
					Action: SplitColourAction,
				},
				{
					Name:      "single-colour",
					Usage:     "keep rays of exactly one colour inside",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64SliceFlag{
							Name:     splitFlagColour,
							Usage:    "colour `R,G,B`, channels in [0, 255]",
							Required: true,
						},
					},
					Action: SplitSingleColourAction,
				},
				{
					Name:      "grid",
					Usage:     "split into <cloud>_<i>_<j>_<k>.ply tiles by ray end",
					ArgsUsage: "<cloud>",
					Flags: []cli.Flag{
						&cli.Float64SliceFlag{
							Name:     splitFlagCell,
							Usage:    "cell width `W` for x and y, or `X,Y,Z`; zero leaves an axis undivided",
							Required: true,
						},
						&cli.Float64Flag{
							Name:  splitFlagOverlap,
							Usage: "also put rays within this distance of a cell into it",
						},
					},
					Action: SplitGridAction,
				},
			},
		},
		{
			Name:      "surfels",
			Usage:     "fit surfels to a ray cloud and colour each ray by its normal",
			ArgsUsage: "<cloud> <output>",
			Action:    SurfelsAction,
		},
		{
			Name:      "render",
			Usage:     "render the density of a ray cloud to an image",
			ArgsUsage: "<cloud> <image>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  renderFlagView,
					Usage: "top, left, right, front or back",
					Value: "top",
				},
				&cli.StringFlag{
					Name:  renderFlagStyle,
					Usage: "grey or gradient",
					Value: "grey",
				},
			},
			Action: RenderAction,
		},
		{
			Name:      "heightfield",
			Usage:     "render the surface heights of a mesh to a greyscale image",
			ArgsUsage: "<mesh.ply> <image>",
			Flags: []cli.Flag{
				&cli.Float64Flag{
					Name:  heightFieldFlagWidth,
					Usage: "pixel width in mesh units, defaults to mesh.voxel_width",
				},
				&cli.StringFlag{
					Name:  heightFieldFlagMode,
					Usage: "highest or lowest",
					Value: "highest",
				},
			},
			Action: HeightFieldAction,
		},
	},
}

func segmentFlagDefs() []cli.Flag {
	return []cli.Flag{
		&cli.Float64SliceFlag{
			Name:     splitFlagStart,
			Usage:    "axis start `X,Y,Z`",
			Required: true,
		},
		&cli.Float64SliceFlag{
			Name:     splitFlagEnd,
			Usage:    "axis end `X,Y,Z`",
			Required: true,
		},
		&cli.Float64Flag{
			Name:     splitFlagRadius,
			Usage:    "radius around the axis",
			Required: true,
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

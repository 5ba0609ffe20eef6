// Package vis defines the optional visualisation hook that processing
// operations report intermediate geometry to.
package vis

import (
	"image/color"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
)

// Cylinder is a solid between two points.
type Cylinder struct {
	Start  r3.Vector
	End    r3.Vector
	Radius float64
}

// Ellipsoid is centered at Center with semi-axes Axes.
type Ellipsoid struct {
	Center r3.Vector
	Axes   [3]r3.Vector
}

// A Drawer receives geometry worth looking at. Implementations must not retain
// the slices passed to them.
type Drawer interface {
	DrawCloud(name string, points []r3.Vector, colors []color.NRGBA)
	DrawLines(name string, starts, ends []r3.Vector, c color.NRGBA)
	DrawCylinders(name string, cylinders []Cylinder, c color.NRGBA)
	DrawEllipsoids(name string, ellipsoids []Ellipsoid, c color.NRGBA)
}

// Noop discards everything.
type Noop struct{}

// DrawCloud does nothing.
func (Noop) DrawCloud(string, []r3.Vector, []color.NRGBA) {}

// DrawLines does nothing.
func (Noop) DrawLines(string, []r3.Vector, []r3.Vector, color.NRGBA) {}

// DrawCylinders does nothing.
func (Noop) DrawCylinders(string, []Cylinder, color.NRGBA) {}

// DrawEllipsoids does nothing.
func (Noop) DrawEllipsoids(string, []Ellipsoid, color.NRGBA) {}

// OrNoop returns d, or Noop when d is nil.
func OrNoop(d Drawer) Drawer {
	if d == nil {
		return Noop{}
	}
	return d
}

type logDrawer struct {
	logger golog.Logger
}

// NewLogDrawer returns a Drawer that logs a summary of each draw call at debug level.
func NewLogDrawer(logger golog.Logger) Drawer {
	return &logDrawer{logger: logger}
}

func (d *logDrawer) DrawCloud(name string, points []r3.Vector, colors []color.NRGBA) {
	d.logger.Debugw("draw cloud", "name", name, "points", len(points), "colored", len(colors) == len(points))
}

func (d *logDrawer) DrawLines(name string, starts, ends []r3.Vector, c color.NRGBA) {
	d.logger.Debugw("draw lines", "name", name, "lines", len(starts), "color", c)
}

func (d *logDrawer) DrawCylinders(name string, cylinders []Cylinder, c color.NRGBA) {
	d.logger.Debugw("draw cylinders", "name", name, "cylinders", len(cylinders), "color", c)
}

func (d *logDrawer) DrawEllipsoids(name string, ellipsoids []Ellipsoid, c color.NRGBA) {
	d.logger.Debugw("draw ellipsoids", "name", name, "ellipsoids", len(ellipsoids), "color", c)
}

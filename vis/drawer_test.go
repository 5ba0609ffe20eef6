package vis

import (
	"image/color"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestDrawers(t *testing.T) {
	test.That(t, OrNoop(nil), test.ShouldResemble, Drawer(Noop{}))

	logger, logs := golog.NewObservedTestLogger(t)
	d := OrNoop(NewLogDrawer(logger))
	pts := []r3.Vector{{1, 2, 3}}
	d.DrawCloud("cloud", pts, nil)
	d.DrawLines("rays", pts, pts, color.NRGBA{R: 255, A: 255})
	d.DrawCylinders("trunks", []Cylinder{{End: r3.Vector{Z: 1}, Radius: 0.2}}, color.NRGBA{})
	d.DrawEllipsoids("surfels", []Ellipsoid{{Center: pts[0]}}, color.NRGBA{})
	test.That(t, logs.FilterMessage("draw cloud").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessage("draw ellipsoids").Len(), test.ShouldEqual, 1)
	test.That(t, logs.Len(), test.ShouldEqual, 4)

	var noop Noop
	noop.DrawCloud("cloud", pts, nil)
}

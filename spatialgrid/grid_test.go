package spatialgrid

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/raycloud/spatialmath"
)

func TestLayout(t *testing.T) {
	bounds := spatialmath.NewCuboid(r3.Vector{}, r3.Vector{3, 1.5, 0})

	t.Run("dims round up and never hit zero", func(t *testing.T) {
		l, err := NewLayout(bounds, 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, l.Dims, test.ShouldResemble, [3]int{3, 2, 1})
		test.That(t, l.NumCells(), test.ShouldEqual, 6)
		test.That(t, l.Bounds().Max, test.ShouldResemble, r3.Vector{3, 2, 1})
	})

	t.Run("invalid construction", func(t *testing.T) {
		_, err := NewLayout(bounds, 0)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = NewLayout(bounds, -1)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = NewLayout(spatialmath.NewEmptyCuboid(), 1)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = NewLayout(bounds, 1e-12)
		test.That(t, err, test.ShouldNotBeNil)
		_, err = NewLayoutWithDims(r3.Vector{}, 1, [3]int{2, 0, 2})
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("index round trip", func(t *testing.T) {
		l, err := NewLayoutWithDims(r3.Vector{}, 0.5, [3]int{4, 3, 2})
		test.That(t, err, test.ShouldBeNil)
		seen := map[int]bool{}
		for z := 0; z < 2; z++ {
			for y := 0; y < 3; y++ {
				for x := 0; x < 4; x++ {
					k := Key{x, y, z}
					i := l.Index(k)
					test.That(t, seen[i], test.ShouldBeFalse)
					seen[i] = true
					test.That(t, l.KeyAt(i), test.ShouldResemble, k)
				}
			}
		}
		test.That(t, len(seen), test.ShouldEqual, l.NumCells())
		test.That(t, l.Index(Key{1, 0, 0}), test.ShouldEqual, 1)
		test.That(t, l.Index(Key{0, 1, 0}), test.ShouldEqual, 4)
		test.That(t, l.Index(Key{0, 0, 1}), test.ShouldEqual, 12)
	})

	t.Run("keys and clamping", func(t *testing.T) {
		l, err := NewLayout(bounds, 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, l.KeyOf(r3.Vector{2.5, 0.2, 0}), test.ShouldResemble, Key{2, 0, 0})
		test.That(t, l.KeyOf(r3.Vector{-0.5, 0, 0}), test.ShouldResemble, Key{-1, 0, 0})
		test.That(t, l.Contains(Key{3, 0, 0}), test.ShouldBeFalse)
		test.That(t, l.ClampKey(Key{3, -4, 7}), test.ShouldResemble, Key{2, 0, 0})
		test.That(t, l.CellBounds(Key{1, 1, 0}).Min, test.ShouldResemble, r3.Vector{1, 1, 0})
		test.That(t, l.CellCenter(Key{1, 1, 0}), test.ShouldResemble, r3.Vector{1.5, 1.5, 0.5})

		_, _, ok := l.KeyRange(r3.Vector{5, 5, 5}, r3.Vector{6, 6, 6})
		test.That(t, ok, test.ShouldBeFalse)
		a, b, ok := l.KeyRange(r3.Vector{-1, 0.5, -1}, r3.Vector{1.5, 9, 9})
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, a, test.ShouldResemble, Key{0, 0, 0})
		test.That(t, b, test.ShouldResemble, Key{1, 1, 0})
	})
}

func TestGrid(t *testing.T) {
	g, err := New[int](spatialmath.NewCuboid(r3.Vector{}, r3.Vector{4, 4, 4}), 1)
	test.That(t, err, test.ShouldBeNil)

	t.Run("insert and read", func(t *testing.T) {
		g.Insert(Key{1, 2, 3}, 7)
		g.Insert(Key{1, 2, 3}, 8)
		test.That(t, g.Cell(Key{1, 2, 3}), test.ShouldResemble, []int{7, 8})
		test.That(t, g.Cell(Key{0, 0, 0}), test.ShouldBeEmpty)
	})

	t.Run("out of range panics", func(t *testing.T) {
		test.That(t, func() { g.Insert(Key{4, 0, 0}, 1) }, test.ShouldPanic)
		test.That(t, func() { g.Cell(Key{0, -1, 0}) }, test.ShouldPanic)
	})

	t.Run("box insertion spans cells", func(t *testing.T) {
		n := g.InsertBox(r3.Vector{0.5, 0.5, 0.5}, r3.Vector{1.5, 1.5, 0.5}, 42)
		test.That(t, n, test.ShouldEqual, 4)
		for _, k := range []Key{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}} {
			test.That(t, g.Cell(k), test.ShouldContain, 42)
		}
		test.That(t, g.InsertBox(r3.Vector{-9, -9, -9}, r3.Vector{-8, -8, -8}, 1), test.ShouldEqual, 0)
		test.That(t, g.InsertBox(r3.Vector{3.5, 3.5, 3.5}, r3.Vector{10, 10, 10}, 9), test.ShouldEqual, 1)
	})

	t.Run("for each visits occupied cells", func(t *testing.T) {
		visited := 0
		g.ForEach(func(k Key, cell []int) {
			visited++
			test.That(t, cell, test.ShouldNotBeEmpty)
		})
		test.That(t, visited, test.ShouldEqual, g.Occupied())
		test.That(t, visited, test.ShouldEqual, 6)
	})
}

func TestNeighbourShells(t *testing.T) {
	shells := NeighbourShells()
	test.That(t, shells[FaceShell], test.ShouldHaveLength, 6)
	test.That(t, shells[EdgeShell], test.ShouldHaveLength, 12)
	test.That(t, shells[CornerShell], test.ShouldHaveLength, 8)
	for s, shell := range shells {
		for _, k := range shell {
			test.That(t, abs(k.X)+abs(k.Y)+abs(k.Z), test.ShouldEqual, s+1)
		}
	}
	test.That(t, Neighbours(), test.ShouldHaveLength, 26)
	test.That(t, Key{1, 2, 3}.Add(Key{-1, 0, 1}), test.ShouldResemble, Key{0, 2, 4})
}

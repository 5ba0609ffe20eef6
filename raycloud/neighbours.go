package raycloud

import (
	"context"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"

	"go.viam.com/raycloud/utils"
)

// Neighbour is one result of a nearest neighbour query.
type Neighbour struct {
	Index   int
	DistSqr float64
}

// A NeighbourSearcher finds, for every point of a set, up to k of its nearest
// other points in the set, nearest first. A point is never its own neighbour.
type NeighbourSearcher interface {
	NearestNeighbours(ctx context.Context, points []r3.Vector, k int) ([][]Neighbour, error)
}

// KDTreeSearcher answers neighbour queries exactly with a k-d tree.
type KDTreeSearcher struct{}

// NearestNeighbours builds a tree over points and queries it for each point in parallel.
func (KDTreeSearcher) NearestNeighbours(ctx context.Context, points []r3.Vector, k int) ([][]Neighbour, error) {
	out := make([][]Neighbour, len(points))
	if k <= 0 || len(points) < 2 {
		return out, nil
	}
	indexed := make(treePoints, len(points))
	for i, p := range points {
		indexed[i] = treePoint{pos: p, id: i}
	}
	// New reorders indexed in place, ids keep the mapping back to points.
	tree := kdtree.New(indexed, false)

	err := utils.GroupWorkParallel(ctx, len(points), nil, func(_, _, _, _ int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		return func(_, i int) {
			keeper := kdtree.NewNKeeper(k + 1)
			tree.NearestSet(keeper, treePoint{pos: points[i], id: i})
			found := make([]Neighbour, 0, k)
			for _, cd := range keeper.Heap {
				if cd.Comparable == nil {
					continue
				}
				tp := cd.Comparable.(treePoint)
				if tp.id == i {
					continue
				}
				found = append(found, Neighbour{Index: tp.id, DistSqr: cd.Dist})
			}
			sortNeighbours(found)
			if len(found) > k {
				found = found[:k]
			}
			out[i] = found
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sortNeighbours(ns []Neighbour) {
	// insertion sort, k is small
	for i := 1; i < len(ns); i++ {
		for j := i; j > 0 && neighbourLess(ns[j], ns[j-1]); j-- {
			ns[j], ns[j-1] = ns[j-1], ns[j]
		}
	}
}

func neighbourLess(a, b Neighbour) bool {
	if a.DistSqr != b.DistSqr {
		return a.DistSqr < b.DistSqr
	}
	return a.Index < b.Index
}

type treePoint struct {
	pos r3.Vector
	id  int
}

func (p treePoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.pos.X
	case 1:
		return p.pos.Y
	default:
		return p.pos.Z
	}
}

// Compare returns the signed distance of p from the plane through c along d.
func (p treePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(treePoint).coord(d)
}

// Dims returns three.
func (p treePoint) Dims() int { return 3 }

// Distance returns the squared euclidean distance.
func (p treePoint) Distance(c kdtree.Comparable) float64 {
	return p.pos.Sub(c.(treePoint).pos).Norm2()
}

type treePoints []treePoint

func (p treePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p treePoints) Len() int                      { return len(p) }
func (p treePoints) Pivot(d kdtree.Dim) int {
	return treePlane{points: p, Dim: d}.Pivot()
}
func (p treePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type treePlane struct {
	kdtree.Dim
	points treePoints
}

func (p treePlane) Less(i, j int) bool {
	return p.points[i].coord(p.Dim) < p.points[j].coord(p.Dim)
}
func (p treePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p treePlane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
func (p treePlane) Swap(i, j int) { p.points[i], p.points[j] = p.points[j], p.points[i] }
func (p treePlane) Len() int      { return len(p.points) }

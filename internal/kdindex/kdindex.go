// Package kdindex wraps gonum's spatial/kdtree for the per-frame nearest
// neighbor queries the residual-assembly step needs against a map slab. The
// tree is rebuilt from scratch every frame; nothing here is mutated in
// place.
package kdindex

import (
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// point implements kdtree.Comparable for a single r3.Vector plus its
// original index into the source slice, so queries can recover which input
// point a result corresponds to.
type point struct {
	r3.Vector
	idx int
}

func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		return p.Z - q.Z
	}
}

func (p point) Dims() int { return 3 }

func (p point) Distance(c kdtree.Comparable) float64 {
	q := c.(point)
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return dx*dx + dy*dy + dz*dz
}

// pointSet implements kdtree.Interface over a slice of point.
type pointSet []point

func (s pointSet) Len() int { return len(s) }
func (s pointSet) Index(i int) kdtree.Comparable { return s[i] }
func (s pointSet) Slice(start, end int) kdtree.Interface {
	return s[start:end]
}
func (s pointSet) Less(i, j int, d kdtree.Dim) bool {
	switch d {
	case 0:
		return s[i].X < s[j].X
	case 1:
		return s[i].Y < s[j].Y
	default:
		return s[i].Z < s[j].Z
	}
}
func (s pointSet) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(plane{s, d}, kdtree.MedianOfMedians(plane{s, d}))
}

// plane implements kdtree.SortSlicer for a single dimension, required by
// kdtree.Partition/MedianOfMedians.
type plane struct {
	pointSet
	dim kdtree.Dim
}

func (p plane) Less(i, j int) bool { return p.pointSet.Less(i, j, p.dim) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.pointSet = p.pointSet[start:end]
	return p
}
func (p plane) Swap(i, j int) { p.pointSet[i], p.pointSet[j] = p.pointSet[j], p.pointSet[i] }

// Index is a bulk-built KD-tree over a slab's points for a single frame.
type Index struct {
	tree   *kdtree.Tree
	points pointSet
}

// Build constructs an Index over pts. An empty pts yields an Index that
// always reports no neighbors.
func Build(pts []r3.Vector) *Index {
	ps := make(pointSet, len(pts))
	for i, p := range pts {
		ps[i] = point{Vector: p, idx: i}
	}
	idx := &Index{points: ps}
	if len(ps) > 0 {
		idx.tree = kdtree.New(ps, false)
	}
	return idx
}

// Neighbor is a single k-NN result: the original point and the squared
// distance from the query.
type Neighbor struct {
	Point  r3.Vector
	SqDist float64
	SrcIdx int
}

// KNN returns up to k nearest neighbors of q, sorted by increasing squared
// distance, using gonum's NewNKeeper to bound the heap to k entries.
func (idx *Index) KNN(q r3.Vector, k int) []Neighbor {
	if idx.tree == nil || k <= 0 {
		return nil
	}
	keeper := kdtree.NewNKeeper(k)
	idx.tree.NearestSet(keeper, point{Vector: q})
	out := make([]Neighbor, 0, len(keeper.Heap))
	for _, h := range keeper.Heap {
		// With fewer than k indexed points the keeper's infinite-distance
		// sentinel stays in the heap; it carries no point.
		if h.Comparable == nil {
			continue
		}
		p := h.Comparable.(point)
		out = append(out, Neighbor{Point: p.Vector, SqDist: h.Dist, SrcIdx: p.idx})
	}
	// keeper.Heap is a container/heap max-heap: only the root is guaranteed
	// to be the current maximum, the rest of the backing slice has no
	// ascending-order guarantee. Callers rely on out[k-1] being the
	// farthest, so sort explicitly.
	sort.Slice(out, func(i, j int) bool { return out[i].SqDist < out[j].SqDist })
	return out
}

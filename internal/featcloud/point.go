// Package featcloud defines the feature-point type shared across the
// mapping pipeline and a deterministic voxel-grid downsampler.
package featcloud

import "github.com/golang/geo/r3"

// Point is a single LiDAR return carried through the pipeline: position,
// reflected intensity, a curvature tag used to re-split a filtered stack
// back into edge/plane subsets (see Curvature below), and a normal slot
// that after residual assembly holds the mean per-coordinate displacement
// to the point's map neighbors rather than a literal surface normal.
type Point struct {
	Pos       r3.Vector
	Intensity float64
	Normal    r3.Vector
	Curvature float64
}

// IsEdge reports whether p should be treated as an edge (corner) feature
// rather than a planar one, using the same 0.1 curvature threshold the
// dynamic-removal re-split applies.
func (p Point) IsEdge() bool { return p.Curvature <= 0.1 }

// Cloud is a slice of feature points with a handful of convenience
// accessors; it intentionally stays a plain slice so cube-map cells, voxel
// cells, and per-frame stacks can all share the same underlying type.
type Cloud []Point

// Positions extracts the raw positions, used when handing a cloud to the
// KD-tree index or clustering collaborators that only care about geometry.
func (c Cloud) Positions() []r3.Vector {
	pos := make([]r3.Vector, len(c))
	for i, p := range c {
		pos[i] = p.Pos
	}
	return pos
}

// VoxelKey identifies a cell in a voxel grid of a given leaf size, following
// the (I, J, K) integer-coordinate convention used throughout the pack's
// point cloud packages.
type VoxelKey struct {
	I, J, K int64
}

func keyFor(p r3.Vector, leaf float64) VoxelKey {
	return VoxelKey{
		I: int64(floorDiv(p.X, leaf)),
		J: int64(floorDiv(p.Y, leaf)),
		K: int64(floorDiv(p.Z, leaf)),
	}
}

func floorDiv(v, leaf float64) float64 {
	q := v / leaf
	f := float64(int64(q))
	if q < 0 && f != q {
		f--
	}
	return f
}

// VoxelDownsample performs a deterministic grid-snap average: every point is
// assigned to the voxel cell its position falls in, and each occupied cell
// is replaced by the arithmetic mean of the points assigned to it
// (position, intensity, normal, and curvature all averaged). Iteration order
// over the result is the order voxel keys are first seen in c, which is
// itself deterministic given a deterministic input order.
func VoxelDownsample(c Cloud, leaf float64) Cloud {
	if leaf <= 0 || len(c) == 0 {
		return append(Cloud(nil), c...)
	}
	type accum struct {
		sum   Point
		count int
	}
	cells := make(map[VoxelKey]*accum)
	order := make([]VoxelKey, 0)
	for _, p := range c {
		k := keyFor(p.Pos, leaf)
		a, ok := cells[k]
		if !ok {
			a = &accum{}
			cells[k] = a
			order = append(order, k)
		}
		a.sum.Pos = a.sum.Pos.Add(p.Pos)
		a.sum.Intensity += p.Intensity
		a.sum.Normal = a.sum.Normal.Add(p.Normal)
		a.sum.Curvature += p.Curvature
		a.count++
	}
	out := make(Cloud, 0, len(order))
	for _, k := range order {
		a := cells[k]
		inv := 1 / float64(a.count)
		out = append(out, Point{
			Pos:       a.sum.Pos.Mul(inv),
			Intensity: a.sum.Intensity * inv,
			Normal:    a.sum.Normal.Mul(inv),
			Curvature: a.sum.Curvature * inv,
		})
	}
	return out
}

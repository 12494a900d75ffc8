// Package cluster implements Euclidean clustering with point-count and
// bounding-box size gates, plus a human-shape heuristic, over a world-frame
// point cloud. The spatial index is a uniform grid keyed by a Szudzik-paired
// cell id, the same scheme the teacher pipeline uses for its DBSCAN
// neighbor queries, extended here to three dimensions and to single-link
// (no core-point/noise distinction) connectivity to match classic Euclidean
// cluster extraction rather than density-based clustering.
package cluster

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/TYEclipse/AD-LOAM/internal/featcloud"
)

// Params configures the clustering pass.
type Params struct {
	Tolerance float64 // connectivity radius, meters
	MinPts    int
	MaxPts    int
	MinSize   float64 // bounding-box diagonal, meters
	MaxSize   float64
	Lambda    float64 // human-shape heuristic weight
}

// Cluster is one connected group of points with its derived geometry.
type Cluster struct {
	Points   featcloud.Cloud
	Min, Max r3.Vector
	Centroid r3.Vector
	Size     r3.Vector // Max - Min, per axis
	Human    bool
}

type grid struct {
	cell float64
	m    map[int64][]int
}

func newGrid(cell float64) *grid {
	return &grid{cell: cell, m: make(map[int64][]int)}
}

func cellCoord(v, cell float64) int64 {
	return int64(math.Floor(v / cell))
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

func szudzik(a, b int64) int64 {
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

func (g *grid) id(x, y, z float64) int64 {
	cx, cy, cz := zigzag(cellCoord(x, g.cell)), zigzag(cellCoord(y, g.cell)), zigzag(cellCoord(z, g.cell))
	return szudzik(szudzik(cx, cy), cz)
}

func (g *grid) build(pts featcloud.Cloud) {
	for i, p := range pts {
		id := g.id(p.Pos.X, p.Pos.Y, p.Pos.Z)
		g.m[id] = append(g.m[id], i)
	}
}

func (g *grid) query(pts featcloud.Cloud, idx int, eps float64) []int {
	p := pts[idx].Pos
	eps2 := eps * eps
	cx, cy, cz := cellCoord(p.X, g.cell), cellCoord(p.Y, g.cell), cellCoord(p.Z, g.cell)
	var out []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				id := szudzik(szudzik(zigzag(cx+dx), zigzag(cy+dy)), zigzag(cz+dz))
				for _, j := range g.m[id] {
					d := pts[j].Pos.Sub(p)
					if d.X*d.X+d.Y*d.Y+d.Z*d.Z <= eps2 {
						out = append(out, j)
					}
				}
			}
		}
	}
	return out
}

// Extract runs single-link Euclidean clustering over pts using a BFS
// expansion through the grid index, then keeps only clusters whose point
// count and bounding-box size both fall within the configured gates.
func Extract(pts featcloud.Cloud, p Params) []Cluster {
	if len(pts) == 0 || p.Tolerance <= 0 {
		return nil
	}
	g := newGrid(p.Tolerance)
	g.build(pts)

	visited := make([]bool, len(pts))
	var clusters []Cluster
	for i := range pts {
		if visited[i] {
			continue
		}
		visited[i] = true
		queue := []int{i}
		members := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, n := range g.query(pts, cur, p.Tolerance) {
				if visited[n] {
					continue
				}
				visited[n] = true
				queue = append(queue, n)
				members = append(members, n)
			}
		}
		if len(members) < p.MinPts || (p.MaxPts > 0 && len(members) > p.MaxPts) {
			continue
		}
		c := buildCluster(pts, members, p.Lambda)
		diag := c.Size.Norm()
		if diag < p.MinSize || (p.MaxSize > 0 && diag > p.MaxSize) {
			continue
		}
		clusters = append(clusters, c)
	}
	return clusters
}

func buildCluster(pts featcloud.Cloud, members []int, lambda float64) Cluster {
	cloud := make(featcloud.Cloud, len(members))
	min := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	var sum r3.Vector
	for i, idx := range members {
		p := pts[idx]
		cloud[i] = p
		sum = sum.Add(p.Pos)
		min = r3.Vector{X: math.Min(min.X, p.Pos.X), Y: math.Min(min.Y, p.Pos.Y), Z: math.Min(min.Z, p.Pos.Z)}
		max = r3.Vector{X: math.Max(max.X, p.Pos.X), Y: math.Max(max.Y, p.Pos.Y), Z: math.Max(max.Z, p.Pos.Z)}
	}
	centroid := sum.Mul(1 / float64(len(members)))
	size := max.Sub(min)
	return Cluster{
		Points:   cloud,
		Min:      min,
		Max:      max,
		Centroid: centroid,
		Size:     size,
		Human:    isHumanShaped(size, lambda),
	}
}

// isHumanShaped flags a cluster as person-like when its footprint is narrow
// relative to clusterLambda and its height is within a standing-person band,
// mirroring the shape-based gate the original pipeline applies alongside
// its people-detector before handing clusters to the tracker.
func isHumanShaped(size r3.Vector, lambda float64) bool {
	footprint := math.Hypot(size.X, size.Y)
	if lambda <= 0 {
		lambda = 1
	}
	return footprint <= lambda && size.Z >= 0.8 && size.Z <= 2.2
}

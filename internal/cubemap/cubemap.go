// Package cubemap implements the recentering cube-sharded world map: a
// fixed-size 3D array of cube cells, each holding an edge and a plane point
// cloud, addressed by a flat arena index and shiftable along any axis so the
// sensor always stays away from the array's boundary.
package cubemap

import (
	"github.com/golang/geo/r3"

	"github.com/TYEclipse/AD-LOAM/internal/featcloud"
)

// Width, Height, Depth are the cube array extents, matching the original's
// 21x21x11 arrangement (4851 cells of 50m cubes).
const (
	Width  = 21
	Height = 21
	Depth  = 11
	// CubeSize is the edge length in meters of one cube cell.
	CubeSize = 50.0
)

// Cell holds the edge and plane feature clouds belonging to one cube.
type Cell struct {
	Edge  featcloud.Cloud
	Plane featcloud.Cloud
}

// Map is the recentering cube-sharded world map.
type Map struct {
	cells [Width * Height * Depth]Cell
	// CenterI/J/K are the storage offsets such that the world origin maps
	// to cube index (CenterI, CenterJ, CenterK); they are mutated by
	// Recenter as the array shifts.
	CenterI, CenterJ, CenterK int
}

// New returns an empty map with the sensor starting near the array center.
func New() *Map {
	return &Map{CenterI: Width / 2, CenterJ: Height / 2, CenterK: Depth / 2}
}

func flat(i, j, k int) int {
	return i + Width*j + Width*Height*k
}

// CubeIndex computes the cube index (I, J, K) for a world point, applying
// the original's floor-toward-negative-infinity correction for negative
// coordinates.
func (m *Map) CubeIndex(p r3.Vector) (int, int, int) {
	i := cubeCoord(p.X, m.CenterI)
	j := cubeCoord(p.Y, m.CenterJ)
	k := cubeCoord(p.Z, m.CenterK)
	return i, j, k
}

func cubeCoord(v float64, center int) int {
	c := int((v + CubeSize/2) / CubeSize)
	if v+CubeSize/2 < 0 {
		c--
	}
	return c + center
}

// InBounds reports whether (i, j, k) addresses a valid cell.
func InBounds(i, j, k int) bool {
	return i >= 0 && i < Width && j >= 0 && j < Height && k >= 0 && k < Depth
}

// Cell returns a pointer to the cell at (i, j, k), or nil if out of bounds.
func (m *Map) Cell(i, j, k int) *Cell {
	if !InBounds(i, j, k) {
		return nil
	}
	return &m.cells[flat(i, j, k)]
}

// Insert routes a point into its destination cube's edge or plane cloud
// based on its curvature tag. Points that fall outside the array are
// dropped, matching the map's bounded-memory design.
func (m *Map) Insert(p featcloud.Point) {
	i, j, k := m.CubeIndex(p.Pos)
	cell := m.Cell(i, j, k)
	if cell == nil {
		return
	}
	if p.IsEdge() {
		cell.Edge = append(cell.Edge, p)
	} else {
		cell.Plane = append(cell.Plane, p)
	}
}

// Recenter shifts the array along any axis whose sensor-cube coordinate has
// drifted within two cells of a boundary, clearing the evicted slab and
// adjusting the corresponding center offset so the sensor index remains in
// [2, extent-3] afterward. It returns the sensor's cube index post-shift.
func (m *Map) Recenter(sensor r3.Vector) (int, int, int) {
	i, j, k := m.CubeIndex(sensor)

	for i < 2 {
		m.shiftI(1)
		m.CenterI++
		i++
	}
	for i >= Width-2 {
		m.shiftI(-1)
		m.CenterI--
		i--
	}
	for j < 2 {
		m.shiftJ(1)
		m.CenterJ++
		j++
	}
	for j >= Height-2 {
		m.shiftJ(-1)
		m.CenterJ--
		j--
	}
	for k < 2 {
		m.shiftK(1)
		m.CenterK++
		k++
	}
	for k >= Depth-2 {
		m.shiftK(-1)
		m.CenterK--
		k--
	}
	return i, j, k
}

// shiftI moves every cell along the I axis by dir (+1 or -1), discarding the
// slab that rolls off the far edge. Positive dir means "the array's contents
// move toward higher I", mirroring the original's cube-shift loops that walk
// I from the far edge inward when the sensor approaches the near edge.
func (m *Map) shiftI(dir int) {
	if dir > 0 {
		for j := 0; j < Height; j++ {
			for k := 0; k < Depth; k++ {
				for i := Width - 1; i > 0; i-- {
					m.cells[flat(i, j, k)] = m.cells[flat(i-1, j, k)]
				}
				m.cells[flat(0, j, k)] = Cell{}
			}
		}
		return
	}
	for j := 0; j < Height; j++ {
		for k := 0; k < Depth; k++ {
			for i := 0; i < Width-1; i++ {
				m.cells[flat(i, j, k)] = m.cells[flat(i+1, j, k)]
			}
			m.cells[flat(Width-1, j, k)] = Cell{}
		}
	}
}

func (m *Map) shiftJ(dir int) {
	if dir > 0 {
		for i := 0; i < Width; i++ {
			for k := 0; k < Depth; k++ {
				for j := Height - 1; j > 0; j-- {
					m.cells[flat(i, j, k)] = m.cells[flat(i, j-1, k)]
				}
				m.cells[flat(i, 0, k)] = Cell{}
			}
		}
		return
	}
	for i := 0; i < Width; i++ {
		for k := 0; k < Depth; k++ {
			for j := 0; j < Height-1; j++ {
				m.cells[flat(i, j, k)] = m.cells[flat(i, j+1, k)]
			}
			m.cells[flat(i, Height-1, k)] = Cell{}
		}
	}
}

func (m *Map) shiftK(dir int) {
	if dir > 0 {
		for i := 0; i < Width; i++ {
			for j := 0; j < Height; j++ {
				for k := Depth - 1; k > 0; k-- {
					m.cells[flat(i, j, k)] = m.cells[flat(i, j, k-1)]
				}
				m.cells[flat(i, j, 0)] = Cell{}
			}
		}
		return
	}
	for i := 0; i < Width; i++ {
		for j := 0; j < Height; j++ {
			for k := 0; k < Depth-1; k++ {
				m.cells[flat(i, j, k)] = m.cells[flat(i, j, k+1)]
			}
			m.cells[flat(i, j, Depth-1)] = Cell{}
		}
	}
}

// Slab returns the indices of the 3x3x3 window of cells centered on
// (ci, cj, ck), clipped to the array bounds.
func Slab(ci, cj, ck int) [][3]int {
	out := make([][3]int, 0, 27)
	for i := ci - 1; i <= ci+1; i++ {
		for j := cj - 1; j <= cj+1; j++ {
			for k := ck - 1; k <= ck+1; k++ {
				if InBounds(i, j, k) {
					out = append(out, [3]int{i, j, k})
				}
			}
		}
	}
	return out
}

// GatherSlab unions the edge and plane clouds of the cells named by idx.
func (m *Map) GatherSlab(idx [][3]int) (edge, plane featcloud.Cloud) {
	for _, c := range idx {
		cell := m.Cell(c[0], c[1], c[2])
		if cell == nil {
			continue
		}
		edge = append(edge, cell.Edge...)
		plane = append(plane, cell.Plane...)
	}
	return edge, plane
}

// FilterSlab voxel-downsamples the edge and plane clouds of every cell named
// by idx in place, at the given leaf sizes.
func (m *Map) FilterSlab(idx [][3]int, lineRes, planeRes float64) {
	for _, c := range idx {
		cell := m.Cell(c[0], c[1], c[2])
		if cell == nil {
			continue
		}
		cell.Edge = featcloud.VoxelDownsample(cell.Edge, lineRes)
		cell.Plane = featcloud.VoxelDownsample(cell.Plane, planeRes)
	}
}

// PointCount returns the total number of stored points across every cell's
// edge and plane clouds, used by the bounded-memory invariant check.
func (m *Map) PointCount() int {
	n := 0
	for i := range m.cells {
		n += len(m.cells[i].Edge) + len(m.cells[i].Plane)
	}
	return n
}

package geom

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestMeanDisplacementOfSymmetricNeighborsIsZero(t *testing.T) {
	query := r3.Vector{}
	neighbors := []r3.Vector{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1},
	}
	n := MeanDisplacement(query, neighbors)
	assert.InDelta(t, 0, n.MeanDelta.X, 1e-9)
	assert.InDelta(t, 0, n.MeanDelta.Y, 1e-9)
}

func TestFitEdgeLineAcceptsCollinearPoints(t *testing.T) {
	neighbors := []r3.Vector{
		{X: -2}, {X: -1}, {X: 0}, {X: 1}, {X: 2},
	}
	line := FitEdgeLine(neighbors, r3.Vector{})
	assert.True(t, line.IsLine)
	assert.InDelta(t, 0, PointToLineDistance(r3.Vector{X: 5}, line.A, line.B), 1e-6)
}

func TestFitEdgeLineRejectsSphericalCluster(t *testing.T) {
	neighbors := []r3.Vector{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}
	line := FitEdgeLine(neighbors, r3.Vector{})
	assert.False(t, line.IsLine)
}

func TestFitPlaneAcceptsFlatNeighbors(t *testing.T) {
	neighbors := []r3.Vector{
		{X: 0, Y: 0, Z: 2},
		{X: 1, Y: 0, Z: 2},
		{X: 0, Y: 1, Z: 2},
		{X: 1, Y: 1, Z: 2},
		{X: 0.5, Y: 0.5, Z: 2},
	}
	plane := FitPlane(neighbors)
	assert.True(t, plane.IsFlat)
	assert.InDelta(t, 0, plane.SignedDistance(r3.Vector{X: 10, Y: -4, Z: 2}), 1e-6)
}

func TestFitPlaneRejectsNonPlanarNeighbors(t *testing.T) {
	neighbors := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 5},
		{X: 0, Y: 1, Z: -5},
		{X: 1, Y: 1, Z: 3},
		{X: 0.5, Y: 0.5, Z: -3},
	}
	plane := FitPlane(neighbors)
	assert.False(t, plane.IsFlat)
}

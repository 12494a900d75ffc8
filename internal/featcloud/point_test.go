package featcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestVoxelDownsampleAverages(t *testing.T) {
	c := Cloud{
		{Pos: r3.Vector{X: 0.01, Y: 0, Z: 0}, Intensity: 1},
		{Pos: r3.Vector{X: 0.02, Y: 0, Z: 0}, Intensity: 3},
		{Pos: r3.Vector{X: 5, Y: 5, Z: 5}, Intensity: 9},
	}
	out := VoxelDownsample(c, 0.1)
	assert.Len(t, out, 2)
	assert.InDelta(t, 2.0, out[0].Intensity, 1e-9)
}

func TestVoxelDownsampleEmpty(t *testing.T) {
	out := VoxelDownsample(nil, 0.1)
	assert.Empty(t, out)
}

func TestIsEdge(t *testing.T) {
	assert.True(t, Point{Curvature: 0.05}.IsEdge())
	assert.False(t, Point{Curvature: 0.2}.IsEdge())
}

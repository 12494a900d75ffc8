package cluster

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TYEclipse/AD-LOAM/internal/featcloud"
)

func TestExtractFindsTwoClusters(t *testing.T) {
	var pts featcloud.Cloud
	for i := 0; i < 15; i++ {
		pts = append(pts, featcloud.Point{Pos: r3.Vector{X: float64(i) * 0.05, Y: 0, Z: 0}})
	}
	for i := 0; i < 15; i++ {
		pts = append(pts, featcloud.Point{Pos: r3.Vector{X: 50 + float64(i)*0.05, Y: 0, Z: 0}})
	}
	clusters := Extract(pts, Params{Tolerance: 0.2, MinPts: 5, MaxPts: 1000, MinSize: 0, MaxSize: 1000})
	require.Len(t, clusters, 2)
}

func TestExtractRejectsBelowMinPts(t *testing.T) {
	pts := featcloud.Cloud{
		{Pos: r3.Vector{X: 0, Y: 0, Z: 0}},
		{Pos: r3.Vector{X: 0.1, Y: 0, Z: 0}},
	}
	clusters := Extract(pts, Params{Tolerance: 0.3, MinPts: 5, MaxPts: 1000, MaxSize: 1000})
	assert.Empty(t, clusters)
}

func TestHumanShapeHeuristic(t *testing.T) {
	assert.True(t, isHumanShaped(r3.Vector{X: 0.5, Y: 0.5, Z: 1.7}, 1.0))
	assert.False(t, isHumanShaped(r3.Vector{X: 3, Y: 3, Z: 1.7}, 1.0))
	assert.False(t, isHumanShaped(r3.Vector{X: 0.5, Y: 0.5, Z: 0.2}, 1.0))
}

package dynamics

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"

	"github.com/TYEclipse/AD-LOAM/internal/cluster"
	"github.com/TYEclipse/AD-LOAM/internal/featcloud"
)

func TestThresholdsAdaptAndClassify(t *testing.T) {
	th := NewThresholds()
	th.Observe(2.0, 1.0)
	th.Observe(4.0, 3.0)
	th.Update()
	// The accumulators start seeded with 0.2 (speed) and 0.3 (displacement).
	assert.InDelta(t, (0.2+2.0+4.0)/3/2, th.MaxObjectSpeed, 1e-9)
	assert.InDelta(t, (0.3+1.0+3.0)/3/2, th.MaxClassDist, 1e-9)

	dyn := th.IsDynamic(ClusterScore{TrackerSpeed: 2.0, DisplacementScore: 0.1})
	assert.True(t, dyn)
	static := th.IsDynamic(ClusterScore{TrackerSpeed: 0.1, DisplacementScore: 0.1})
	assert.False(t, static)
}

func TestRemoveFiltersPointsInsideBox(t *testing.T) {
	stack := featcloud.Cloud{
		{Pos: r3.Vector{X: 0, Y: 0, Z: 0}},
		{Pos: r3.Vector{X: 10, Y: 10, Z: 10}},
	}
	boxes := []Box{ExpandedBox(cluster.Cluster{Min: r3.Vector{}, Max: r3.Vector{}}, 0.5)}
	kept, removed := Remove(stack, boxes)
	assert.Len(t, kept, 1)
	assert.Len(t, removed, 1)
	assert.Equal(t, 10.0, kept[0].Pos.X)
}

func TestRemoveNoBoxesKeepsAll(t *testing.T) {
	stack := featcloud.Cloud{{Pos: r3.Vector{X: 1, Y: 1, Z: 1}}}
	kept, removed := Remove(stack, nil)
	assert.Len(t, kept, 1)
	assert.Empty(t, removed)
}

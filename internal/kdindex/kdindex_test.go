package kdindex

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestBuildAndKNN(t *testing.T) {
	pts := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: 1, Z: 0},
		{X: 5, Y: 5, Z: 5},
	}
	idx := Build(pts)
	res := idx.KNN(r3.Vector{X: 0.1, Y: 0.1, Z: 0}, 2)
	assert.Len(t, res, 2)
	assert.Less(t, res[0].SqDist, res[1].SqDist)
}

func TestEmptyIndex(t *testing.T) {
	idx := Build(nil)
	assert.Nil(t, idx.KNN(r3.Vector{}, 5))
}

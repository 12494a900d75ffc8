package solve

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"

	"github.com/TYEclipse/AD-LOAM/internal/geom"
)

func TestRefineNoResidualsReturnsInput(t *testing.T) {
	init := geom.Identity()
	out := Refine(init, Problem{})
	assert.Equal(t, init, out)
}

func TestRefineConvergesTowardTranslation(t *testing.T) {
	// A single plane residual pulling the pose toward x=1: the plane x=1,
	// normal (1,0,0), with a local-frame point at the origin.
	init := geom.Identity()
	plane := geom.Plane{Normal: r3.Vector{X: 1}, D: -1, IsFlat: true}
	prob := Problem{Planes: []PlaneResidual{{Local: r3.Vector{}, Plane: plane}}}
	out := Refine(init, prob)
	// The refined pose's translation should have moved toward satisfying
	// normal.Dot(T) + D == 0, i.e. T.X closer to 1 than before.
	assert.Greater(t, out.T.X, init.T.X)
}

func TestHuberWeightTapersLargeResiduals(t *testing.T) {
	assert.Equal(t, 1.0, huberWeight(0.05))
	assert.Less(t, huberWeight(1.0), 1.0)
}

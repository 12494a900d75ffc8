package geom

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"
)

func TestIdentityTransformIsNoOp(t *testing.T) {
	p := Identity()
	v := r3.Vector{X: 1, Y: 2, Z: 3}
	assert.Equal(t, v, p.Transform(v))
}

func TestTransformInverseTransformRoundTrips(t *testing.T) {
	p := Pose{Q: quat.Number{Real: 0.7071067811865476, Kmag: 0.7071067811865476}, T: r3.Vector{X: 1, Y: -2, Z: 0.5}}.Normalize()
	v := r3.Vector{X: 3, Y: 4, Z: 5}
	world := p.Transform(v)
	back := p.InverseTransform(world)
	assert.InDelta(t, v.X, back.X, 1e-9)
	assert.InDelta(t, v.Y, back.Y, 1e-9)
	assert.InDelta(t, v.Z, back.Z, 1e-9)
}

func TestComposeThenTransformMatchesSequentialTransform(t *testing.T) {
	a := Pose{Q: quat.Number{Real: 1}, T: r3.Vector{X: 1, Y: 0, Z: 0}}
	b := Pose{Q: quat.Number{Real: 0.7071067811865476, Kmag: 0.7071067811865476}, T: r3.Vector{Y: 2}}.Normalize()
	v := r3.Vector{X: 1, Y: 1, Z: 1}

	composed := b.Compose(a)
	direct := b.Transform(a.Transform(v))
	got := composed.Transform(v)

	assert.InDelta(t, direct.X, got.X, 1e-9)
	assert.InDelta(t, direct.Y, got.Y, 1e-9)
	assert.InDelta(t, direct.Z, got.Z, 1e-9)
}

func TestInverseComposesToIdentity(t *testing.T) {
	p := Pose{Q: quat.Number{Real: 0.7071067811865476, Imag: 0.7071067811865476}, T: r3.Vector{X: 5, Y: -3, Z: 2}}.Normalize()
	id := p.Inverse().Compose(p)
	assert.InDelta(t, 1, id.Q.Real, 1e-9)
	assert.InDelta(t, 0, id.T.X, 1e-9)
	assert.InDelta(t, 0, id.T.Y, 1e-9)
	assert.InDelta(t, 0, id.T.Z, 1e-9)
}

func TestNormalizeZeroQuaternionFallsBackToIdentity(t *testing.T) {
	p := Pose{Q: quat.Number{}, T: r3.Vector{X: 1}}.Normalize()
	assert.Equal(t, 1.0, p.Q.Real)
}

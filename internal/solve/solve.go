// Package solve implements the nonlinear least-squares pose refinement: a
// hand-rolled Gauss-Newton iteration over the unit-quaternion-plus-
// translation manifold with a Huber robust loss, using gonum's dense matrix
// type as the linear backend. This replaces the original's
// ceres::Problem/HuberLoss/EigenQuaternionParameterization combination with
// the same residual structure and iteration budget (four inner iterations),
// per the spec's own suggestion to hand-roll Gauss-Newton on SO(3)xR^3 when
// no ready-made on-manifold nonlinear-LS library is available.
package solve

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/TYEclipse/AD-LOAM/internal/geom"
)

// HuberScale is the robust loss transition scale, matching the original's
// ceres::HuberLoss(0.1).
const HuberScale = 0.1

// MaxInnerIterations bounds the Gauss-Newton loop, matching the original's
// options.max_num_iterations = 4.
const MaxInnerIterations = 4

// EdgeResidual is a line correspondence: the local-frame query point and the
// two world-frame anchors of its matched map line.
type EdgeResidual struct {
	Local r3.Vector
	A, B  r3.Vector
}

// PlaneResidual is a plane correspondence: the local-frame query point and
// the matched map plane.
type PlaneResidual struct {
	Local r3.Vector
	Plane geom.Plane
}

// Problem bundles the residuals for one outer iteration's solve.
type Problem struct {
	Edges  []EdgeResidual
	Planes []PlaneResidual
}

// huberWeight returns the factor applied to a residual and its Jacobian row
// under a Huber loss of the configured scale: unit weight inside the scale,
// and sqrt(scale/|r|) beyond it (the square root of the Huber IRLS weight,
// since the factor scales both sides of the normal equations).
func huberWeight(r float64) float64 {
	a := math.Abs(r)
	if a <= HuberScale {
		return 1
	}
	return math.Sqrt(HuberScale / a)
}

// Refine runs up to MaxInnerIterations of Gauss-Newton starting from init,
// minimizing the Huber-weighted sum of edge and plane residuals over a
// 6-parameter tangent update (3 for rotation, 3 for translation) applied at
// each iteration by retract, then returns the refined pose.
// If p has no residuals, init is returned unchanged.
func Refine(init geom.Pose, p Problem) geom.Pose {
	if len(p.Edges) == 0 && len(p.Planes) == 0 {
		return init
	}
	pose := init
	for iter := 0; iter < MaxInnerIterations; iter++ {
		n := len(p.Edges) + len(p.Planes)
		jac := mat.NewDense(n, 6, nil)
		res := mat.NewVecDense(n, nil)
		row := 0
		for _, e := range p.Edges {
			world := pose.Transform(e.Local)
			r, j := edgeResidualJacobian(world, e.A, e.B, pose, e.Local)
			w := huberWeight(r)
			res.SetVec(row, w*r)
			for c := 0; c < 6; c++ {
				jac.Set(row, c, w*j[c])
			}
			row++
		}
		for _, pl := range p.Planes {
			world := pose.Transform(pl.Local)
			r := pl.Plane.SignedDistance(world)
			j := planeJacobian(pl.Local, pose, pl.Plane.Normal)
			w := huberWeight(r)
			res.SetVec(row, w*r)
			for c := 0; c < 6; c++ {
				jac.Set(row, c, w*j[c])
			}
			row++
		}

		var jt mat.Dense
		jt.CloneFrom(jac.T())
		var jtj mat.Dense
		jtj.Mul(&jt, jac)
		var jtr mat.VecDense
		jtr.MulVec(&jt, res)
		jtr.ScaleVec(-1, &jtr)

		// Levenberg-style damping keeps the normal equations well
		// conditioned when a frame has few correspondences.
		for i := 0; i < 6; i++ {
			jtj.Set(i, i, jtj.At(i, i)+1e-6)
		}

		var dx mat.VecDense
		if err := dx.SolveVec(&jtj, &jtr); err != nil {
			break
		}
		pose = retract(pose, &dx)
	}
	return pose
}

// retract applies a tangent-space update: the first three components of dx
// are a small-angle rotation (applied as an incremental quaternion), the
// last three a translation delta, matching the effect of ceres's
// EigenQuaternionParameterization's local update rule.
func retract(p geom.Pose, dx *mat.VecDense) geom.Pose {
	wx, wy, wz := dx.AtVec(0), dx.AtVec(1), dx.AtVec(2)
	dq := quat.Number{Real: 1, Imag: wx / 2, Jmag: wy / 2, Kmag: wz / 2}
	newQ := quat.Mul(p.Q, dq)
	newT := p.T.Add(r3.Vector{X: dx.AtVec(3), Y: dx.AtVec(4), Z: dx.AtVec(5)})
	return geom.Pose{Q: newQ, T: newT}.Normalize()
}

// edgeResidualJacobian returns the point-to-line distance residual and its
// numerical Jacobian with respect to the 6-parameter tangent update.
func edgeResidualJacobian(world, a, b r3.Vector, pose geom.Pose, local r3.Vector) (float64, [6]float64) {
	f := func(p geom.Pose) float64 {
		return geom.PointToLineDistance(p.Transform(local), a, b)
	}
	r := f(pose)
	return r, numericJacobian(pose, f, r)
}

func planeJacobian(local r3.Vector, pose geom.Pose, normal r3.Vector) [6]float64 {
	f := func(p geom.Pose) float64 {
		return normal.Dot(p.Transform(local))
	}
	r := f(pose)
	return numericJacobian(pose, f, r)
}

const eps = 1e-6

// numericJacobian finite-differences f across the six tangent directions
// around pose, reusing the same retract() used by the optimizer step so the
// Jacobian is consistent with the parameterization being optimized over.
func numericJacobian(pose geom.Pose, f func(geom.Pose) float64, r0 float64) [6]float64 {
	var j [6]float64
	for c := 0; c < 6; c++ {
		d := mat.NewVecDense(6, nil)
		d.SetVec(c, eps)
		rp := f(retract(pose, d))
		j[c] = (rp - r0) / eps
	}
	return j
}

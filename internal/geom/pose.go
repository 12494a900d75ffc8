// Package geom implements the rigid-transform and small-matrix math shared by
// the mapping pipeline: pose composition, point association, and the
// eigendecomposition/least-squares steps used to build edge and plane
// residuals.
package geom

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a rigid transform expressed as a unit quaternion rotation plus a
// translation, matching the parameter-block layout the refinement solver
// operates on.
type Pose struct {
	Q quat.Number
	T r3.Vector
}

// Identity returns the zero rotation, zero translation pose.
func Identity() Pose {
	return Pose{Q: quat.Number{Real: 1}, T: r3.Vector{}}
}

// Normalize returns p with Q rescaled to unit norm. The refinement solver's
// manifold parameterization keeps Q unit-norm implicitly; callers that build
// a Pose by hand (tests, odometry ingestion) should normalize once on entry.
func (p Pose) Normalize() Pose {
	n := quat.Abs(p.Q)
	if n == 0 {
		return Pose{Q: quat.Number{Real: 1}, T: p.T}
	}
	return Pose{Q: quat.Scale(1/n, p.Q), T: p.T}
}

// Transform applies p to a point: world = Q*point*Q^-1 + T.
func (p Pose) Transform(pt r3.Vector) r3.Vector {
	return rotate(p.Q, pt).Add(p.T)
}

// InverseTransform applies the inverse of p: local = Q^-1*(world-T)*Q.
func (p Pose) InverseTransform(pt r3.Vector) r3.Vector {
	return rotate(quat.Conj(p.Q), pt.Sub(p.T))
}

// Compose returns the pose equivalent to applying a first, then b: for any
// point x, b.Compose(a).Transform(x) == b.Transform(a.Transform(x)).
func (b Pose) Compose(a Pose) Pose {
	return Pose{
		Q: quat.Mul(b.Q, a.Q),
		T: rotate(b.Q, a.T).Add(b.T),
	}
}

// Inverse returns the pose p such that p.Compose(q) == Identity() (up to
// floating point error) for q == this pose.
func (p Pose) Inverse() Pose {
	qi := quat.Conj(p.Q)
	return Pose{Q: qi, T: rotate(qi, p.T).Mul(-1)}
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

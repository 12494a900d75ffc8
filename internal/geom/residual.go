package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Neighborhood holds the five map points nearest a query point, plus their
// centroid and the mean per-coordinate displacement from the query to each
// neighbor. The mean displacement is stored by callers on the feature
// point's normal slot for downstream dynamic-cluster scoring; it is never
// accumulated across neighbors beyond this single mean.
type Neighborhood struct {
	Points    []r3.Vector
	Centroid  r3.Vector
	MeanDelta r3.Vector
}

// MeanDisplacement computes the neighborhood centroid and the mean
// per-coordinate displacement from query to each neighbor (neighbor minus
// query).
func MeanDisplacement(query r3.Vector, neighbors []r3.Vector) Neighborhood {
	n := Neighborhood{Points: neighbors}
	if len(neighbors) == 0 {
		return n
	}
	var sum, delta r3.Vector
	for _, p := range neighbors {
		sum = sum.Add(p)
		delta = delta.Add(p.Sub(query))
	}
	inv := 1 / float64(len(neighbors))
	n.Centroid = sum.Mul(inv)
	n.MeanDelta = delta.Mul(inv)
	return n
}

// EdgeLine is the line through a neighborhood's centroid along its dominant
// eigenvector, represented by two anchor points 0.1m either side of the
// centroid (0.2m apart), matching the original's direct construction of two line anchors
// rather than a parametric line type.
type EdgeLine struct {
	A, B   r3.Vector
	IsLine bool
}

// FitEdgeLine builds the covariance of neighbors about their centroid, and
// accepts the correspondence as a line only if the largest eigenvalue
// exceeds three times the middle eigenvalue.
func FitEdgeLine(neighbors []r3.Vector, centroid r3.Vector) EdgeLine {
	if len(neighbors) == 0 {
		return EdgeLine{}
	}
	var cov mat.SymDense
	cov.Reset()
	data := make([]float64, 9)
	for _, p := range neighbors {
		d := p.Sub(centroid)
		data[0] += d.X * d.X
		data[1] += d.X * d.Y
		data[2] += d.X * d.Z
		data[4] += d.Y * d.Y
		data[5] += d.Y * d.Z
		data[8] += d.Z * d.Z
	}
	n := float64(len(neighbors))
	for i := range data {
		data[i] /= n
	}
	data[3] = data[1]
	data[6] = data[2]
	data[7] = data[5]
	sym := mat.NewSymDense(3, data)

	var eig mat.EigenSym
	if !eig.Factorize(sym, true) {
		return EdgeLine{}
	}
	values := eig.Values(nil)
	// Values are returned in ascending order.
	largest, middle := values[2], values[1]
	if largest <= 3*middle {
		return EdgeLine{}
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	dir := r3.Vector{X: vecs.At(0, 2), Y: vecs.At(1, 2), Z: vecs.At(2, 2)}
	dir = dir.Normalize()
	return EdgeLine{
		A:      centroid.Add(dir.Mul(0.1)),
		B:      centroid.Sub(dir.Mul(0.1)),
		IsLine: true,
	}
}

// PointToLineDistance is the Euclidean distance from p to the infinite line
// through a and b.
func PointToLineDistance(p, a, b r3.Vector) float64 {
	ab := b.Sub(a)
	ap := p.Sub(a)
	cross := ab.Cross(ap)
	abLen := ab.Norm()
	if abLen == 0 {
		return ap.Norm()
	}
	return cross.Norm() / abLen
}

// Plane is a unit-normal plane fit n.x = -1 (via the original's A*n=-1
// least-squares formulation, so d below is the negative offset directly).
type Plane struct {
	Normal r3.Vector
	D      float64
	IsFlat bool
}

// FitPlane solves the 5x3 (or Nx3) least squares system A*n = -1 for the five
// neighbor points and rejects the fit if any neighbor lies farther than 0.2m
// from the resulting plane.
func FitPlane(neighbors []r3.Vector) Plane {
	n := len(neighbors)
	if n < 3 {
		return Plane{}
	}
	aData := make([]float64, 0, n*3)
	bData := make([]float64, n)
	for i, p := range neighbors {
		aData = append(aData, p.X, p.Y, p.Z)
		bData[i] = -1
	}
	a := mat.NewDense(n, 3, aData)
	b := mat.NewVecDense(n, bData)

	var at mat.Dense
	at.CloneFrom(a.T())
	var ata mat.Dense
	ata.Mul(&at, a)
	var atb mat.VecDense
	atb.MulVec(&at, b)

	var x mat.VecDense
	if err := x.SolveVec(&ata, &atb); err != nil {
		return Plane{}
	}
	normal := r3.Vector{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
	norm := normal.Norm()
	if norm == 0 || math.IsNaN(norm) {
		return Plane{}
	}
	invNorm := 1 / norm
	normal = normal.Mul(invNorm)
	d := invNorm // since A*n=-1 means original n_raw has offset 1 baked in: n_raw . p + 1 = 0

	for _, p := range neighbors {
		dist := math.Abs(normal.Dot(p) + d)
		if dist > 0.2 {
			return Plane{}
		}
	}
	return Plane{Normal: normal, D: d, IsFlat: true}
}

// SignedDistance returns the signed distance from p to the plane.
func (pl Plane) SignedDistance(p r3.Vector) float64 {
	return pl.Normal.Dot(p) + pl.D
}

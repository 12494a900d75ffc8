// Package ground estimates an adaptive ground level from the current
// frame's stack points, generalizing the static floor/ceiling height band
// the teacher pipeline uses into the online mean/stddev cut the mapper
// needs before clustering.
package ground

import (
	"github.com/golang/geo/r3"

	"github.com/TYEclipse/AD-LOAM/internal/accum"
)

// Estimator accumulates z-coordinates across a frame and reports their
// running mean and standard deviation at any point.
type Estimator struct {
	acc *accum.Accumulator
}

// New returns an estimator ready to accept a new frame's z-samples.
func New() *Estimator {
	return &Estimator{acc: accum.New()}
}

// Observe folds the z-coordinate of p into the running estimate. The mapper
// calls it for every stack point in each outer iteration of residual
// assembly; repeating the same samples leaves the mean and the population
// standard deviation unchanged.
func (e *Estimator) Observe(p r3.Vector) {
	e.acc.Add(p.Z)
}

// Mean returns the current running mean ground level, or 0 if no samples.
func (e *Estimator) Mean() float64 { return e.acc.Mean() }

// StdDev returns the current running standard deviation.
func (e *Estimator) StdDev() float64 { return e.acc.StdDev() }

// Reset clears the estimator for the next frame.
func (e *Estimator) Reset() { e.acc.Reset() }

// CutBounds returns the ground-aware height band [lo, hi] a point must fall
// within to survive the ground cut, given the sensor's configured min/max z
// bounds: lo is the midpoint between lidarMinZ and the current ground mean,
// hi is lidarMaxZ unchanged.
func (e *Estimator) CutBounds(lidarMinZ, lidarMaxZ float64) (lo, hi float64) {
	return (lidarMinZ + e.Mean()) / 2, lidarMaxZ
}

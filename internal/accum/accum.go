// Package accum provides a running mean/stddev/min/max accumulator over a
// scalar stream, used throughout the mapper for ground-level statistics and
// the adaptive dynamic-object thresholds.
package accum

import "math"

// Accumulator maintains running statistics using Welford's online algorithm,
// which avoids the numerical blow-up of a naive sum-of-squares approach over
// long-running streams.
type Accumulator struct {
	count int64
	mean  float64
	m2    float64
	min   float64
	max   float64
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{min: math.Inf(1), max: math.Inf(-1)}
}

// Add folds x into the running statistics.
func (a *Accumulator) Add(x float64) {
	a.count++
	delta := x - a.mean
	a.mean += delta / float64(a.count)
	delta2 := x - a.mean
	a.m2 += delta * delta2
	if x < a.min {
		a.min = x
	}
	if x > a.max {
		a.max = x
	}
}

// Reset clears all accumulated statistics.
func (a *Accumulator) Reset() {
	*a = Accumulator{min: math.Inf(1), max: math.Inf(-1)}
}

// Count returns the number of samples folded in so far.
func (a *Accumulator) Count() int64 { return a.count }

// Mean returns the running mean, or 0 if no samples have been added.
func (a *Accumulator) Mean() float64 { return a.mean }

// Variance returns the running population variance.
func (a *Accumulator) Variance() float64 {
	if a.count == 0 {
		return 0
	}
	return a.m2 / float64(a.count)
}

// StdDev returns the running population standard deviation.
func (a *Accumulator) StdDev() float64 { return math.Sqrt(a.Variance()) }

// Min returns the smallest sample seen, or +Inf if none.
func (a *Accumulator) Min() float64 { return a.min }

// Max returns the largest sample seen, or -Inf if none.
func (a *Accumulator) Max() float64 { return a.max }

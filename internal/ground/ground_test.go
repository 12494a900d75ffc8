package ground

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
)

func TestEstimatorCutBounds(t *testing.T) {
	e := New()
	for _, z := range []float64{0.0, 0.2, -0.2} {
		e.Observe(r3.Vector{Z: z})
	}
	assert.InDelta(t, 0.0, e.Mean(), 1e-9)
	lo, hi := e.CutBounds(-1.0, 3.0)
	assert.InDelta(t, -0.5, lo, 1e-9)
	assert.InDelta(t, 3.0, hi, 1e-9)
}

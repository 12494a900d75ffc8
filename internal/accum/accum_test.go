package accum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulatorBasic(t *testing.T) {
	a := New()
	for _, x := range []float64{1, 2, 3, 4, 5} {
		a.Add(x)
	}
	assert.EqualValues(t, 5, a.Count())
	assert.InDelta(t, 3.0, a.Mean(), 1e-9)
	assert.InDelta(t, 2.0, a.Variance(), 1e-9)
	assert.InDelta(t, 1.0, a.Min(), 1e-9)
	assert.InDelta(t, 5.0, a.Max(), 1e-9)
}

func TestAccumulatorReset(t *testing.T) {
	a := New()
	a.Add(10)
	a.Reset()
	assert.EqualValues(t, 0, a.Count())
	assert.InDelta(t, 0, a.Mean(), 1e-9)
}

package smoothing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSmooth_ZeroIterations_IsIdentity(t *testing.T) {
	// GIVEN a signal and iterations=0
	s := []float64{1, 5, 2, 9, 0}

	// WHEN Smooth is called
	out := Smooth(s, 3, 0)

	// THEN the output equals the input exactly
	assert.Equal(t, s, out)
}

func TestSmooth_ConstantSignal_Unchanged(t *testing.T) {
	// GIVEN a constant signal
	s := []float64{4, 4, 4, 4, 4, 4}

	// WHEN smoothed with a window of 3 over several iterations
	out := Smooth(s, 3, 5)

	// THEN every value remains 4 (mean of constants is constant)
	for _, v := range out {
		assert.Equal(t, 4.0, v)
	}
}

func TestSmooth_Boundary_RenormalizesToAvailablePoints(t *testing.T) {
	// GIVEN a short ramp with a window of 3
	s := []float64{0, 3, 6}

	// WHEN smoothed once
	out := Smooth(s, 3, 1)

	// THEN the first point averages only indices [0,1] (truncated window)
	assert.InDelta(t, 1.5, out[0], 1e-9)
	// the middle point averages all three
	assert.InDelta(t, 3.0, out[1], 1e-9)
	// the last point averages only indices [1,2]
	assert.InDelta(t, 4.5, out[2], 1e-9)
}

func TestSmooth_DoesNotAliasInput(t *testing.T) {
	// GIVEN a signal
	s := []float64{1, 2, 3}
	orig := append([]float64(nil), s...)

	// WHEN Smooth mutates its returned scratch across iterations
	_ = Smooth(s, 3, 3)

	// THEN the caller's original slice is untouched
	assert.Equal(t, orig, s)
}

func TestSmoothCounts_ConvertsIntegerTrace(t *testing.T) {
	// GIVEN an integer count trace
	counts := []int64{2, 2, 2}

	// WHEN SmoothCounts is applied with iterations=0 (identity)
	out := SmoothCounts(counts, 3, 0)

	// THEN it returns the float64 equivalent
	assert.Equal(t, []float64{2, 2, 2}, out)
}

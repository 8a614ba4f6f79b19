package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectionParams_Validate_RejectsAlphaOutOfRange(t *testing.T) {
	// GIVEN params with alpha above the (0, 0.1] bound
	p := DefaultDetectionParams()
	p.Alpha = 0.5

	// WHEN Validate is called
	err := p.Validate()

	// THEN it reports the alpha violation
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alpha")
}

func TestDetectionParams_Validate_ManualIgnoresAlpha(t *testing.T) {
	// GIVEN Manual method params with an out-of-range alpha and a valid manual threshold
	p := DefaultDetectionParams()
	p.Method = MethodManual
	p.Alpha = 5
	p.ManualThreshold = 10

	// WHEN Validate is called
	err := p.Validate()

	// THEN alpha is not checked for Manual
	assert.NoError(t, err)
}

func TestDetectionParams_Validate_RejectsEvenSmoothWindow(t *testing.T) {
	// GIVEN smoothing enabled with an even window
	p := DefaultDetectionParams()
	p.ApplySmoothing = true
	p.SmoothWindow = 4

	// WHEN Validate is called
	err := p.Validate()

	// THEN it reports the smooth_window violation
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smooth_window")
}

func TestDetectionParams_Fingerprint_StableAcrossCalls(t *testing.T) {
	// GIVEN the same params and sigma
	p := DefaultDetectionParams()

	// WHEN Fingerprint is computed twice
	a := p.Fingerprint(0.47)
	b := p.Fingerprint(0.47)

	// THEN the fingerprints are identical
	assert.Equal(t, a, b)
}

func TestDetectionParams_Fingerprint_ChangesWithField(t *testing.T) {
	// GIVEN two otherwise-identical params differing only in min_continuous
	a := DefaultDetectionParams()
	b := DefaultDetectionParams()
	b.MinContinuous = 2

	// WHEN fingerprints are computed
	// THEN they differ
	assert.NotEqual(t, a.Fingerprint(0.47), b.Fingerprint(0.47))
}

func TestDetectionParams_Fingerprint_SigmaOnlyAffectsCompoundPoissonLognormal(t *testing.T) {
	// GIVEN Currie params (sigma-insensitive) and CPLN params (sigma-sensitive)
	currie := DefaultDetectionParams()
	cpln := DefaultDetectionParams()
	cpln.Method = MethodCompoundPoissonLognormal

	// WHEN fingerprints are taken at two different sigmas
	// THEN Currie's fingerprint is unaffected, CPLN's is not
	assert.Equal(t, currie.Fingerprint(0.2), currie.Fingerprint(0.9))
	assert.NotEqual(t, cpln.Fingerprint(0.2), cpln.Fingerprint(0.9))
}

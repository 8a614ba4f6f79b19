package coincidence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icpms/particle-engine/model"
)

var (
	isotopeA = model.NewIsotopeKey("Ag", 107)
	isotopeB = model.NewIsotopeKey("Au", 197)
)

func particleAt(isotope model.IsotopeKey, startS, endS, dwellS float64, totalCounts float64) model.Particle {
	return model.Particle{
		Ref:         uuid.New(),
		Isotope:     isotope,
		LeftIdx:     int(startS / dwellS),
		PeakIdx:     int(startS / dwellS),
		RightIdx:    int(endS / dwellS),
		DwellS:      dwellS,
		TotalCounts: totalCounts,
	}
}

func TestMerge_TwoIsotopeCoincidence_AboveThreshold(t *testing.T) {
	// GIVEN isotope A at [0.100, 0.105] and isotope B at [0.102, 0.108],
	// overlap 3ms over a 5ms minimum duration = 60%
	dwell := 0.001
	a := particleAt(isotopeA, 0.100, 0.105, dwell, 100)
	b := particleAt(isotopeB, 0.102, 0.108, dwell, 200)
	byIsotope := map[model.IsotopeKey][]model.Particle{isotopeA: {a}, isotopeB: {b}}

	clusters := Merge(byIsotope, Params{OverlapThresholdPercentage: 50})

	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].Elements, 2)
}

func TestMerge_TwoIsotopeCoincidence_BelowThreshold(t *testing.T) {
	// GIVEN the same geometry but a stricter threshold than the actual 60%
	dwell := 0.001
	a := particleAt(isotopeA, 0.100, 0.105, dwell, 100)
	b := particleAt(isotopeB, 0.102, 0.108, dwell, 200)
	byIsotope := map[model.IsotopeKey][]model.Particle{isotopeA: {a}, isotopeB: {b}}

	clusters := Merge(byIsotope, Params{OverlapThresholdPercentage: 70})

	assert.Empty(t, clusters)
}

func TestMerge_SingleIsotopeCluster_Dropped(t *testing.T) {
	// GIVEN only one isotope with particles that don't coincide with anything
	dwell := 0.001
	a := particleAt(isotopeA, 0.0, 0.005, dwell, 50)
	byIsotope := map[model.IsotopeKey][]model.Particle{isotopeA: {a}}

	clusters := Merge(byIsotope, Params{OverlapThresholdPercentage: 50})

	assert.Empty(t, clusters)
}

func TestMerge_IntraIsotopeDedup_KeepsLargestTotalCounts(t *testing.T) {
	// GIVEN two candidates of the same isotope both coincident with a third
	// isotope's particle
	dwell := 0.001
	small := particleAt(isotopeA, 0.100, 0.105, dwell, 10)
	large := particleAt(isotopeA, 0.101, 0.106, dwell, 999)
	other := particleAt(isotopeB, 0.100, 0.106, dwell, 500)
	byIsotope := map[model.IsotopeKey][]model.Particle{
		isotopeA: {small, large},
		isotopeB: {other},
	}

	clusters := Merge(byIsotope, Params{OverlapThresholdPercentage: 1})

	require.Len(t, clusters, 1)
	assert.Equal(t, 999.0, clusters[0].Elements[isotopeA])
	// The surviving element's ref is the larger particle's, not the
	// discarded small one's.
	assert.Equal(t, large.Ref, clusters[0].ElementRefs[isotopeA])
	assert.NotEqual(t, small.Ref, clusters[0].ElementRefs[isotopeA])
}

func TestMerge_ElementRefs_MatchContributingParticles(t *testing.T) {
	// GIVEN a two-isotope coincident cluster
	dwell := 0.001
	a := particleAt(isotopeA, 0.100, 0.105, dwell, 100)
	b := particleAt(isotopeB, 0.102, 0.108, dwell, 200)
	byIsotope := map[model.IsotopeKey][]model.Particle{isotopeA: {a}, isotopeB: {b}}

	clusters := Merge(byIsotope, Params{OverlapThresholdPercentage: 50})

	// THEN each isotope's ref in the cluster is its source particle's ref
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].ElementRefs, 2)
	assert.Equal(t, a.Ref, clusters[0].ElementRefs[isotopeA])
	assert.Equal(t, b.Ref, clusters[0].ElementRefs[isotopeB])
}

func TestMerge_OrderInvariantAcrossIsotopeIterationOrder(t *testing.T) {
	// GIVEN the same data built in two different map insertion orders
	dwell := 0.001
	a := particleAt(isotopeA, 0.100, 0.105, dwell, 100)
	b := particleAt(isotopeB, 0.102, 0.108, dwell, 200)

	first := Merge(map[model.IsotopeKey][]model.Particle{isotopeA: {a}, isotopeB: {b}}, Params{OverlapThresholdPercentage: 50})
	second := Merge(map[model.IsotopeKey][]model.Particle{isotopeB: {b}, isotopeA: {a}}, Params{OverlapThresholdPercentage: 50})

	assert.Equal(t, first, second)
}

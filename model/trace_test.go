package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrace_RejectsEmptyCounts(t *testing.T) {
	_, err := NewTrace("s1", NewIsotopeKey("Ag", 107), 1e-4, nil)
	require.Error(t, err)
}

func TestNewTrace_RejectsNonPositiveDwell(t *testing.T) {
	_, err := NewTrace("s1", NewIsotopeKey("Ag", 107), 0, []int64{1, 2})
	require.Error(t, err)
}

func TestNewTrace_RejectsNegativeCount(t *testing.T) {
	_, err := NewTrace("s1", NewIsotopeKey("Ag", 107), 1e-4, []int64{1, -1, 2})
	require.Error(t, err)
}

func TestNewTrace_CopiesCounts_NoAliasing(t *testing.T) {
	counts := []int64{1, 2, 3}
	tr, err := NewTrace("s1", NewIsotopeKey("Ag", 107), 1e-4, counts)
	require.NoError(t, err)

	counts[0] = 99
	assert.Equal(t, int64(1), tr.Counts[0])
}

func TestTrace_LenAndTimeAt(t *testing.T) {
	tr, err := NewTrace("s1", NewIsotopeKey("Ag", 107), 1e-4, []int64{1, 2, 3, 4})
	require.NoError(t, err)

	assert.Equal(t, 4, tr.Len())
	assert.InDelta(t, 3e-4, tr.TimeAt(3), 1e-12)
}

func TestTrace_Fingerprint_EqualForIdenticalContent(t *testing.T) {
	a, err := NewTrace("s1", NewIsotopeKey("Ag", 107), 1e-4, []int64{1, 2, 3})
	require.NoError(t, err)
	b, err := NewTrace("s2", NewIsotopeKey("Au", 197), 1e-4, []int64{1, 2, 3})
	require.NoError(t, err)

	// Fingerprint depends only on dwell time and counts, not sample ID
	// or isotope.
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestTrace_Fingerprint_DiffersOnCountChange(t *testing.T) {
	a, err := NewTrace("s1", NewIsotopeKey("Ag", 107), 1e-4, []int64{1, 2, 3})
	require.NoError(t, err)
	b, err := NewTrace("s1", NewIsotopeKey("Ag", 107), 1e-4, []int64{1, 2, 4})
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsotopeKey_EqualityAtFourDecimals(t *testing.T) {
	// GIVEN two keys differing only past the fourth decimal
	a := NewIsotopeKey("Ag", 106.905097)
	b := NewIsotopeKey("Ag", 106.905103)

	// THEN they round to the same key
	assert.Equal(t, a, b)
}

func TestIsotopeKey_String(t *testing.T) {
	k := NewIsotopeKey("Au", 197)
	assert.Equal(t, "Au-197.0000", k.String())
}

func TestIsotopeKey_DistinctElementsNeverEqual(t *testing.T) {
	a := NewIsotopeKey("Ag", 107)
	b := NewIsotopeKey("Au", 107)
	assert.NotEqual(t, a, b)
}

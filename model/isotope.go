// Defines IsotopeKey, the (element, mass) identity used throughout the
// engine to key per-isotope state (parameters, caches, calibration).

package model

import "fmt"

// IsotopeKey identifies a single isotope trace by element symbol and
// isotope mass in amu, rounded to four decimal places. Two keys are
// equal iff both fields match at that precision.
type IsotopeKey struct {
	Element string
	MassAmu float64 // rounded to 4 decimal places at construction
}

// NewIsotopeKey builds an IsotopeKey, rounding MassAmu to four decimals
// so callers never need to worry about float noise in map lookups.
func NewIsotopeKey(element string, massAmu float64) IsotopeKey {
	return IsotopeKey{Element: element, MassAmu: round4(massAmu)}
}

func round4(v float64) float64 {
	const scale = 1e4
	if v < 0 {
		return -round4(-v)
	}
	return float64(int64(v*scale+0.5)) / scale
}

// String renders the key in "Element-Mass" form, e.g. "Ag-107.0000".
func (k IsotopeKey) String() string {
	return fmt.Sprintf("%s-%.4f", k.Element, k.MassAmu)
}

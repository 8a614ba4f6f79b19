// Package quantitation implements C6: converting integrated element
// counts to mass, moles, and equivalent spherical diameter using a
// process-wide CalibrationState.
package quantitation

import (
	"math"

	"github.com/icpms/particle-engine/config"
	"github.com/icpms/particle-engine/model"
)

// Quantify converts a single isotope's integrated counts into a
// Quantified record. totalCounts is the particle's (or cluster
// element's) integrated count; massFraction is the element's fraction
// of its compound's mass, in (0, 1].
func Quantify(isotope model.IsotopeKey, totalCounts float64, state config.CalibrationState, massFraction float64) model.Quantified {
	rate := state.TransportRate()
	if rate <= 0 {
		return model.UncalibratedQuantified(isotope)
	}

	_, cal, ok := state.SelectIonicVariant(isotope)
	if !ok || cal.Slope <= 0 || totalCounts <= 0 {
		return zeroQuantified(isotope)
	}

	elem, hasElem := state.Ionic[isotope]

	// F: counts per fg of element. Transport rate is in µL/s; the
	// conversion divides by rate*1000 to land in fg given slope's
	// counts-per-ppb units.
	f := cal.Slope / (rate * 1000)
	elementMassFg := totalCounts / f

	mf := massFraction
	if mf <= 0 {
		mf = 1
	}
	compoundMassFg := elementMassFg / mf

	moles := molesFmol(elem, elementMassFg, compoundMassFg)

	density := elem.Density
	mass := elementMassFg
	if hasElem && elem.CompoundDensity > 0 && mf < 1 {
		density = elem.CompoundDensity
		mass = compoundMassFg
	}
	diameter := diameterNm(mass, density)

	return model.Quantified{
		Isotope:        isotope,
		ElementMassFg:  elementMassFg,
		CompoundMassFg: compoundMassFg,
		MolesFmol:      moles,
		DiameterNm:     diameter,
		MassPercentage: math.NaN(),
		MolePercentage: math.NaN(),
	}
}

// molesFmol prefers a configured compound molecular weight; falls back
// to the isotope's own atomic mass when no molecular weight is set.
func molesFmol(elem config.ElementCalibration, elementMassFg, compoundMassFg float64) float64 {
	if elem.MolecularWeight > 0 {
		return compoundMassFg / elem.MolecularWeight
	}
	if elem.AtomicMass > 0 {
		return elementMassFg / elem.AtomicMass
	}
	return math.NaN()
}

// diameterNm computes the equivalent spherical diameter in nanometers
// from a mass in femtograms and a density in g/cm^3.
// d = ((6*m*1e-15)/(π*ρ))^(1/3) * 1e7
func diameterNm(massFg, densityGCm3 float64) float64 {
	if massFg <= 0 || densityGCm3 <= 0 {
		return math.NaN()
	}
	volumeCm3 := (6 * massFg * 1e-15) / (math.Pi * densityGCm3)
	return math.Cbrt(volumeCm3) * 1e7
}

// zeroQuantified is the result for a calibrated-but-unusable input:
// missing ionic data, non-positive slope, or non-positive counts.
// These are defined zeros, not the Uncalibrated sentinel, since a
// transport rate was available.
func zeroQuantified(isotope model.IsotopeKey) model.Quantified {
	return model.Quantified{
		Isotope:        isotope,
		MassPercentage: math.NaN(),
		MolePercentage: math.NaN(),
	}
}

// Percentages computes per-element mass and mole percentages across a
// multi-element cluster's already-quantified elements, mutating copies
// (the inputs are not aliased) so callers can publish the updated
// slice directly.
func Percentages(quants []model.Quantified) []model.Quantified {
	totalMass, totalMoles := 0.0, 0.0
	for _, q := range quants {
		if !q.Uncalibrated {
			totalMass += q.ElementMassFg
			totalMoles += q.MolesFmol
		}
	}
	out := make([]model.Quantified, len(quants))
	for i, q := range quants {
		out[i] = q
		if q.Uncalibrated || totalMass <= 0 {
			continue
		}
		out[i].MassPercentage = q.ElementMassFg / totalMass * 100
		if totalMoles > 0 {
			out[i].MolePercentage = q.MolesFmol / totalMoles * 100
		}
	}
	return out
}

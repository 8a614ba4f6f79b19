package model

import (
	"math"

	"github.com/google/uuid"
)

// Particle is a single contiguous above-background event detected on
// one isotope's trace. It is a closed record: nothing mutates it after
// emission, and every derived quantity (SNR, times) is computed from
// the fields recorded at detection time.
type Particle struct {
	Ref         uuid.UUID // identity surviving cache recompute; never aliases a slice index
	Isotope     IsotopeKey
	LeftIdx     int
	PeakIdx     int
	RightIdx    int
	TotalCounts float64 // Σ max(0, signal[i]-background) over [LeftIdx, RightIdx]
	MaxHeight   float64 // raw count at PeakIdx
	Threshold   float64 // threshold recorded at PeakIdx
	Background  float64 // background recorded at PeakIdx
	DwellS      float64
}

// SNR is the ratio of peak height to the threshold recorded at the
// particle's peak index. Callers must not construct a Particle with a
// non-positive Threshold; SNR is undefined (and will be +Inf or NaN)
// if they do.
func (p Particle) SNR() float64 {
	return p.MaxHeight / p.Threshold
}

// StartTime and EndTime project the particle's index range onto the
// trace's time axis.
func (p Particle) StartTime() float64 { return float64(p.LeftIdx) * p.DwellS }
func (p Particle) EndTime() float64   { return float64(p.RightIdx) * p.DwellS }

// Valid reports whether the particle satisfies the invariants every
// emitted Particle must hold: ordered indices and a non-negative
// integral. It never corrects a violation, only reports it — callers
// that detect Valid()==false have hit an internal invariant violation,
// not ordinary bad input.
func (p Particle) Valid() bool {
	if p.LeftIdx < 0 || p.LeftIdx > p.PeakIdx || p.PeakIdx > p.RightIdx {
		return false
	}
	if p.TotalCounts < 0 {
		return false
	}
	if math.IsNaN(p.TotalCounts) || math.IsNaN(p.MaxHeight) {
		return false
	}
	return true
}

// MultiElementParticle is a cluster of temporally coincident Particles
// contributed by distinct isotopes, plus whatever Quantified companion
// records have been computed on demand for its elements.
type MultiElementParticle struct {
	StartTime   float64
	EndTime     float64
	Elements    map[IsotopeKey]float64   // isotope -> contributing particle's TotalCounts
	ElementRefs map[IsotopeKey]uuid.UUID // isotope -> contributing particle's Ref
}

// Quantified is the derived-quantity companion record for one isotope's
// contribution within a particle (single-element) or multi-element
// cluster, computed on demand and never stored back onto the Particle
// itself.
type Quantified struct {
	ParticleRef    uuid.UUID // identifies the source Particle or cluster element this was derived from
	Isotope        IsotopeKey
	Uncalibrated   bool
	ElementMassFg  float64
	CompoundMassFg float64
	MolesFmol      float64
	DiameterNm     float64
	MassPercentage float64 // within its MultiElementParticle cluster, NaN if single-element
	MolePercentage float64
}

// UncalibratedQuantified builds the sentinel result quantitation emits
// for an isotope with no usable transport rate: every derived field is
// NaN, and Uncalibrated is set so collaborators can distinguish "we
// computed zero" from "we could not compute".
func UncalibratedQuantified(isotope IsotopeKey) Quantified {
	nan := math.NaN()
	return Quantified{
		Isotope:        isotope,
		Uncalibrated:   true,
		ElementMassFg:  nan,
		CompoundMassFg: nan,
		MolesFmol:      nan,
		DiameterNm:     nan,
		MassPercentage: nan,
		MolePercentage: nan,
	}
}

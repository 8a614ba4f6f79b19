package model

import (
	"fmt"
	"hash/fnv"
)

// Trace is an immutable, uniformly-sampled count sequence for one
// (sample, isotope) pair. It is created once at load and never mutated
// afterward.
type Trace struct {
	SampleID string
	Isotope  IsotopeKey
	DwellS   float64 // seconds per sample
	Counts   []int64 // raw, non-negative counts
}

// NewTrace validates and constructs a Trace. Returns an error
// for an empty trace or non-positive dwell time;
// never panics on external input.
func NewTrace(sampleID string, isotope IsotopeKey, dwellS float64, counts []int64) (Trace, error) {
	if len(counts) == 0 {
		return Trace{}, fmt.Errorf("trace %s/%s: empty", sampleID, isotope)
	}
	if dwellS <= 0 {
		return Trace{}, fmt.Errorf("trace %s/%s: dwell_s must be > 0, got %v", sampleID, isotope, dwellS)
	}
	for i, c := range counts {
		if c < 0 {
			return Trace{}, fmt.Errorf("trace %s/%s: negative count %d at index %d", sampleID, isotope, c, i)
		}
	}
	owned := make([]int64, len(counts))
	copy(owned, counts)
	return Trace{SampleID: sampleID, Isotope: isotope, DwellS: dwellS, Counts: owned}, nil
}

// Len returns the number of samples in the trace.
func (t Trace) Len() int { return len(t.Counts) }

// TimeAt returns t0 + i*dwell for index i; t0 is always 0 in this core
// (collaborators may offset it for display).
func (t Trace) TimeAt(i int) float64 {
	return float64(i) * t.DwellS
}

// Fingerprint is a change-detection hash over the trace's content,
// paralleling DetectionParams.Fingerprint: identical dwell time and
// counts always hash identically regardless of the Trace value's
// provenance, so installing an unchanged trace can skip recomputation.
func (t Trace) Fingerprint() uint64 {
	h := fnv.New64a()
	h.Write([]byte(fmt.Sprintf("f%b;", t.DwellS)))
	for _, c := range t.Counts {
		h.Write([]byte(fmt.Sprintf("i%d;", c)))
	}
	return h.Sum64()
}

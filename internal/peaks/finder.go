// Package peaks implements C4: segmentation of a trace into particle
// events given a (possibly smoothed) signal and a threshold profile.
package peaks

import (
	"math"

	"github.com/google/uuid"

	"github.com/icpms/particle-engine/model"
)

// ThresholdProfile supplies the per-index (λ, T) pair the finder walks
// against. background.Profile satisfies this without peaks importing
// background directly, keeping the dependency direction leaf-first.
type ThresholdProfile interface {
	Lambda(i int) float64
	Threshold(i int) float64
}

// Params configures the segmentation pass.
type Params struct {
	MinContinuous int
}

// Find segments raw (background-subtracted integration happens on raw,
// never smoothed, signal) into Particles using smoothed for the
// above-threshold test, raw for integration and height. Both slices
// must have equal, matching length; dwellS is the trace's sample
// interval used to stamp each particle.
//
// The traversal is a state machine: Below -> Rising (counting an
// above-threshold run) -> Confirmed (run >= MinContinuous) ->
// Extending/Extended (walking to background on both sides) -> Emit.
// A NaN encountered mid-run never counts as above threshold: it ends
// the run in progress (the samples before it still form a candidate run
// if long enough), and the cursor resumes scanning at the next index
// rather than aborting the whole trace.
func Find(isotope model.IsotopeKey, raw, smoothed []float64, profile ThresholdProfile, p Params, dwellS float64) []model.Particle {
	n := len(raw)
	if n == 0 || len(smoothed) != n {
		return nil
	}
	minRun := p.MinContinuous
	if minRun < 1 {
		minRun = 1
	}

	runs := candidateRuns(smoothed, profile, minRun, n)
	extended := extendToBackground(runs, raw, profile, n)
	merged := mergeAdjacent(extended)

	particles := make([]model.Particle, 0, len(merged))
	for _, r := range merged {
		p, ok := integrate(isotope, raw, profile, r.left, r.right, dwellS)
		if ok {
			particles = append(particles, p)
		}
	}
	return particles
}

type interval struct {
	left, right int
}

// candidateRuns finds maximal above-threshold runs of at least minRun
// samples. A NaN sample is treated as "not above threshold" — it both
// terminates any run in progress and is itself never included.
func candidateRuns(s []float64, profile ThresholdProfile, minRun, n int) []interval {
	var runs []interval
	runStart := -1
	for i := 0; i < n; i++ {
		above := !math.IsNaN(s[i]) && s[i] > profile.Threshold(i)
		if above {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if i-runStart >= minRun {
				runs = append(runs, interval{left: runStart, right: i - 1})
			}
			runStart = -1
		}
	}
	if runStart >= 0 && n-runStart >= minRun {
		runs = append(runs, interval{left: runStart, right: n - 1})
	}
	return runs
}

// extendToBackground walks each run's boundaries outward while the raw
// signal still exceeds the local background, stopping at the trace
// edges (edge policy: a run touching index 0 or n-1 is kept as-is, no
// extrapolation beyond the trace).
func extendToBackground(runs []interval, raw []float64, profile ThresholdProfile, n int) []interval {
	out := make([]interval, 0, len(runs))
	for _, r := range runs {
		l, rt := r.left, r.right
		for l-1 >= 0 && raw[l-1] > profile.Lambda(l-1) {
			l--
		}
		for rt+1 < n && raw[rt+1] > profile.Lambda(rt+1) {
			rt++
		}
		out = append(out, interval{left: l, right: rt})
	}
	return out
}

// mergeAdjacent merges extended supports that now overlap or touch
// (r_i >= l_{i+1}-1). Input runs are already in left-to-right order
// since candidateRuns scans left to right.
func mergeAdjacent(runs []interval) []interval {
	if len(runs) == 0 {
		return nil
	}
	out := make([]interval, 0, len(runs))
	cur := runs[0]
	for _, r := range runs[1:] {
		if r.left <= cur.right+1 {
			if r.right > cur.right {
				cur.right = r.right
			}
			continue
		}
		out = append(out, cur)
		cur = r
	}
	out = append(out, cur)
	return out
}

// integrate computes total_counts, max_height, peak_idx, and the
// threshold/background recorded at the peak, all from the raw signal.
// Returns ok=false if the resulting particle would violate the
// left<=peak<=right invariant (should not happen for well-formed
// input, but integrate never silently corrects a violation).
func integrate(isotope model.IsotopeKey, raw []float64, profile ThresholdProfile, left, right int, dwellS float64) (model.Particle, bool) {
	if left < 0 || right >= len(raw) || left > right {
		return model.Particle{}, false
	}
	total := 0.0
	peakIdx := left
	maxHeight := raw[left]
	for i := left; i <= right; i++ {
		bg := profile.Lambda(i)
		v := raw[i] - bg
		if v > 0 {
			total += v
		}
		if raw[i] > maxHeight {
			maxHeight = raw[i]
			peakIdx = i
		}
	}
	particle := model.Particle{
		Ref:         uuid.New(),
		Isotope:     isotope,
		LeftIdx:     left,
		PeakIdx:     peakIdx,
		RightIdx:    right,
		TotalCounts: total,
		MaxHeight:   maxHeight,
		Threshold:   profile.Threshold(peakIdx),
		Background:  profile.Lambda(peakIdx),
		DwellS:      dwellS,
	}
	if !particle.Valid() {
		return model.Particle{}, false
	}
	return particle, true
}

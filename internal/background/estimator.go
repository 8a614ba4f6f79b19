// Package background implements C3: background (λ) and threshold (T)
// estimation, either globally over a trace or per fixed-size window,
// with an optional iterative refinement that re-estimates λ excluding
// above-threshold samples.
package background

import (
	"gonum.org/v1/gonum/floats"

	"github.com/icpms/particle-engine/internal/threshold"
)

// Estimate is the (λ, T) pair recorded for a trace or a single window,
// plus the diagnostics the Orchestrator needs.
type Estimate struct {
	Lambda          float64
	Threshold       float64
	Outcome         threshold.Outcome
	IterationsUsed  int
	Converged       bool // false if max_iterations was hit without converging
	NonConvergence  bool // true signals the caller should surface a background_nonconvergence warning
}

// Params configures a single estimation (global or one window's worth).
type Params struct {
	Model         threshold.Model
	Alpha         float64
	Sigma         float64
	Manual        float64
	Iterative     bool
	MaxIterations int
}

const convergenceRelTol = 1e-6

// EstimateFor computes (λ, T) for signal s following: an initial
// λ0 = mean(s), threshold T0 from it, and if Iterative, repeated
// refinement λ_{k+1} = mean({s[i] : s[i] <= T_k}) until the relative
// change drops below 1e-6·max(1, λ_k) or MaxIterations is reached.
//
// Reductions use gonum/floats.Sum for a single fixed traversal order
// rather than a hand-rolled accumulator.
func EstimateFor(s []float64, p Params) Estimate {
	if len(s) == 0 {
		return Estimate{}
	}

	lambda := mean(s)
	t := p.Model.Threshold(threshold.Inputs{Background: lambda, Alpha: p.Alpha, Sigma: p.Sigma, Manual: p.Manual})

	if !p.Iterative {
		return Estimate{Lambda: lambda, Threshold: t.Threshold, Outcome: t.Outcome, IterationsUsed: 0, Converged: true}
	}

	maxIter := p.MaxIterations
	if maxIter <= 0 {
		maxIter = 4
	}

	iterationsUsed := 0
	converged := false
	for iterationsUsed < maxIter {
		iterationsUsed++
		below := belowOrEqual(s, t.Threshold)
		var nextLambda float64
		if len(below) == 0 {
			// All samples exceed threshold. Degrade gracefully: keep the last
			// lambda rather than producing NaN, and stop iterating.
			break
		}
		nextLambda = mean(below)
		nextT := p.Model.Threshold(threshold.Inputs{Background: nextLambda, Alpha: p.Alpha, Sigma: p.Sigma, Manual: p.Manual})

		delta := nextLambda - lambda
		if delta < 0 {
			delta = -delta
		}
		tol := convergenceRelTol * max1(lambda)
		lambda, t = nextLambda, nextT
		if delta < tol {
			converged = true
			break
		}
	}

	return Estimate{
		Lambda:         lambda,
		Threshold:      t.Threshold,
		Outcome:        t.Outcome,
		IterationsUsed: iterationsUsed,
		Converged:      converged,
		NonConvergence: !converged,
	}
}

func mean(s []float64) float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Sum(s) / float64(len(s))
}

func belowOrEqual(s []float64, t float64) []float64 {
	out := make([]float64, 0, len(s))
	for _, v := range s {
		if v <= t {
			out = append(out, v)
		}
	}
	return out
}

func max1(v float64) float64 {
	if v > 1 {
		return v
	}
	return 1
}

// LODCounts returns T - λ, the detection limit expressed in counts.
func (e Estimate) LODCounts() float64 {
	return e.Threshold - e.Lambda
}

// LODMDL is the "LOD_MDL" quantity used downstream: equal to
// LODCounts when λ > 0, else max(0, T).
func (e Estimate) LODMDL() float64 {
	if e.Lambda > 0 {
		return e.LODCounts()
	}
	if e.Threshold > 0 {
		return e.Threshold
	}
	return 0
}

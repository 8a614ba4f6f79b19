package threshold

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// cplnTailMass is the cumulative-weight truncation contract for the
// Fenton-Wilkinson series: summation over k stops once the accumulated
// Poisson weight captures this fraction of the zero-truncated tail's
// total mass.
const cplnTailMass = 1 - 1e-12

// cplnMaxTerms bounds the series in pathological regimes (very large λ)
// so a single Threshold call can never run unbounded.
const cplnMaxTerms = 100000

type cplnModel struct{}

// Threshold implements the compound-Poisson-lognormal model.
//
// λ<=0 is a failure mode of the method itself (no ions expected means no
// compound-Poisson mixture to speak of): it falls back to Currie, with
// FallbackUsed=true.
//
// Otherwise: q0 = (q-e^-λ)/(1-e^-λ) is the target quantile within the
// zero-truncated count distribution (q=1-α). q0<=0 is undefined, so this
// implementation surfaces it as a hard NumericFailure (NaN threshold, a
// warning at the Orchestrator boundary) rather than inventing a clamped
// behavior.
//
// For k=1,2,... (summed until the cumulative Poisson weight captures
// cplnTailMass of the k>=1 tail), each term mixes a Fenton-Wilkinson
// lognormal approximation for the sum of k i.i.d. LogNormal(μ,σ) ion
// contributions, μ chosen so a single ion contributes expected count 1
// (μ = -σ²/2). The mixture CDF is solved for T via a bracketed
// monotone root-find (rootfind.go).
func (cplnModel) Threshold(in Inputs) Result {
	if in.Background <= 0 {
		fallback := currieModel{}.Threshold(in)
		fallback.FallbackUsed = true
		return fallback
	}

	q := 1 - in.Alpha
	pZero := math.Exp(-in.Background)
	tailMass := 1 - pZero
	q0 := (q - pZero) / tailMass
	if q0 <= 0 {
		return Result{Threshold: math.NaN(), Outcome: NumericFailure}
	}

	sigma2 := in.Sigma * in.Sigma
	mu := -sigma2 / 2

	type term struct {
		weight float64
		m      float64
		sigmaK float64
	}
	terms := make([]term, 0, 64)

	// Iterative Poisson pmf update: p_k = p_{k-1} * λ/k, starting from
	// p_0 = e^-λ.
	pk := pZero
	cumulative := 0.0
	for k := 1; k <= cplnMaxTerms; k++ {
		pk *= in.Background / float64(k)
		cumulative += pk
		sigmaK2 := math.Log(1 + (math.Exp(sigma2)-1)/float64(k))
		m := math.Log(float64(k)) + mu + (sigma2-sigmaK2)/2
		terms = append(terms, term{weight: pk, m: m, sigmaK: math.Sqrt(sigmaK2)})
		if cumulative/tailMass >= cplnTailMass {
			break
		}
	}

	mixtureCDF := func(x float64) float64 {
		if x <= 0 {
			return 0
		}
		sum := 0.0
		lnx := math.Log(x)
		for _, t := range terms {
			sum += t.weight * distuv.UnitNormal.CDF((lnx-t.m)/t.sigmaK)
		}
		return sum / tailMass
	}

	t, ok := brentSolve(mixtureCDF, q0, 1e-9, 1.0)
	if !ok {
		return Result{Threshold: math.NaN(), Outcome: NumericFailure}
	}
	return Result{Threshold: t, Outcome: OK}
}

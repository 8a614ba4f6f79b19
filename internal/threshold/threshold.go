// Package threshold implements C2: the four detection-threshold models.
// Every model maps a background λ (and, where applicable, α and σ) to a
// threshold T >= λ such that a sample above T is significant at the
// requested false-positive rate. All four are pure functions of their
// inputs: no shared state, no I/O.
package threshold

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/icpms/particle-engine/config"
)

// Inputs bundles the (background, alpha, sigma, manual) tuple every
// model consumes a subset of.
type Inputs struct {
	Background float64
	Alpha      float64
	Sigma      float64 // CompoundPoissonLognormal only
	Manual     float64 // Manual only
}

// Outcome classifies the numeric result.
type Outcome int

const (
	// OK means Threshold is a valid finite value.
	OK Outcome = iota
	// NumericFailure means Threshold is NaN; CompoundPoissonLognormal's
	// root-find can fail to bracket a solution for extreme inputs.
	NumericFailure
)

// Result is the sum-typed outcome of a threshold computation.
type Result struct {
	Threshold    float64
	Outcome      Outcome
	FallbackUsed bool // CompoundPoissonLognormal fell back to Currie (λ <= 0)
}

// Model computes a threshold from Inputs. Implementations must be pure.
type Model interface {
	Threshold(in Inputs) Result
}

// New constructs the Model for a ThresholdMethod. Returns an error for
// an unrecognized method (this is a programming error, not end-user
// input — config.DetectionParams.Validate rejects bad method names
// before a Model is ever built).
func New(method config.ThresholdMethod) (Model, error) {
	switch method {
	case config.MethodCurrie:
		return currieModel{}, nil
	case config.MethodFormulaC:
		return formulaCModel{}, nil
	case config.MethodCompoundPoissonLognormal:
		return cplnModel{}, nil
	case config.MethodManual:
		return manualModel{}, nil
	default:
		return nil, errUnknownMethod(method)
	}
}

type errUnknownMethod config.ThresholdMethod

func (e errUnknownMethod) Error() string {
	return "threshold: unknown method " + string(e)
}

// zAlpha returns Φ⁻¹(1-α), the one-sided standard normal critical value.
func zAlpha(alpha float64) float64 {
	return distuv.UnitNormal.Quantile(1 - alpha)
}

// --- Currie ---

type currieModel struct{}

// Threshold implements Currie: T = λ + z_α·sqrt((λ+ε)·η), with the
// continuity correction ε=0.5 for λ<10 (else 0) and counting-time ratio
// η=2.
func (currieModel) Threshold(in Inputs) Result {
	z := zAlpha(in.Alpha)
	eps := 0.5
	if in.Background >= 10 {
		eps = 0
	}
	const eta = 2.0
	t := in.Background + z*math.Sqrt((in.Background+eps)*eta)
	return Result{Threshold: t, Outcome: OK}
}

// --- FormulaC (MARLAP) ---

type formulaCModel struct{}

// Threshold implements the MARLAP formula with counting-time ratio t_r=1:
// T = λ + z²/2·t_r + z·sqrt(z²/4·t_r² + λ·t_r·(1+t_r)).
func (formulaCModel) Threshold(in Inputs) Result {
	z := zAlpha(in.Alpha)
	const tr = 1.0
	t := in.Background + z*z/2*tr + z*math.Sqrt(z*z/4*tr*tr+in.Background*tr*(1+tr))
	return Result{Threshold: t, Outcome: OK}
}

// --- Manual ---

type manualModel struct{}

// Threshold implements Manual: T = manual_threshold, ignoring α, σ.
func (manualModel) Threshold(in Inputs) Result {
	return Result{Threshold: in.Manual, Outcome: OK}
}

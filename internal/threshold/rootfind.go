package threshold

import "math"

// brentSolve finds x such that f(x) = target, given f continuous and
// monotonically increasing, starting from a lower bound lo (where f(lo)
// is assumed <= target) and an initial upper guess hi. It expands hi by
// doubling until f(hi) >= target (bracketing), then narrows the bracket
// with a bisection/secant hybrid (the Illinois variant of regula falsi,
// the safeguarded-secant idea at the core of Brent's method): a secant
// step is taken when it falls strictly inside the current bracket,
// bisection otherwise, guaranteeing convergence. Returns ok=false if no
// finite bracket reaches the target within the expansion cap — this is
// the NumericFailure CompoundPoissonLognormal surfaces when the mixture
// CDF cannot reach the requested quantile.
func brentSolve(f func(float64) float64, target, lo, hi float64) (float64, bool) {
	const maxExpand = 200
	const maxIter = 200
	const tol = 1e-9

	a, b := lo, hi
	fa := f(a) - target
	fb := f(b) - target
	for expand := 0; fb < 0; expand++ {
		if expand >= maxExpand {
			return 0, false
		}
		b *= 2
		fb = f(b) - target
	}
	if fa > 0 {
		return a, true
	}

	// Invariant: fa <= 0 <= fb throughout.
	staleSide := 0
	for i := 0; i < maxIter; i++ {
		if b-a < tol*math.Max(1, math.Abs(b)) {
			break
		}

		var x float64
		if fb != fa {
			x = a - fa*(b-a)/(fb-fa) // secant (false-position) estimate
		} else {
			x = 0.5 * (a + b)
		}
		if x <= a || x >= b {
			x = 0.5 * (a + b) // safeguard: fall back to bisection
		}

		fx := f(x) - target
		switch {
		case fx == 0:
			return x, true
		case fx < 0:
			a, fa = x, fx
			staleSide++
			if staleSide >= 2 {
				// Illinois correction: halve the stale endpoint's
				// weight to avoid secant stalling on one side.
				fb /= 2
				staleSide = 0
			}
		default:
			b, fb = x, fx
			staleSide = 0
		}
	}
	return 0.5 * (a + b), true
}

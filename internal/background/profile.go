package background

// Profile is a piecewise-constant (λ, T) profile over a trace: either a
// single global window, or windowed mode's non-overlapping
// fixed-size windows with the final window holding the residual.
type Profile struct {
	WindowSize int // 0 means global (one window covering the whole trace)
	Windows    []WindowEstimate
}

// WindowEstimate is one window's estimate plus the half-open index range
// [Start, End) it applies to.
type WindowEstimate struct {
	Start, End int
	Estimate   Estimate
}

// BuildProfile computes a Profile for signal s. windowSize<=0 or
// windowSize>=len(s) produces a single global window; otherwise s is
// partitioned into non-overlapping windows of windowSize samples, the
// last window absorbing the residual.
func BuildProfile(s []float64, windowSize int, p Params) Profile {
	if windowSize <= 0 || windowSize >= len(s) {
		return Profile{
			WindowSize: 0,
			Windows:    []WindowEstimate{{Start: 0, End: len(s), Estimate: EstimateFor(s, p)}},
		}
	}

	var windows []WindowEstimate
	for start := 0; start < len(s); start += windowSize {
		end := start + windowSize
		if end > len(s) {
			end = len(s) // final window holds the residual
		}
		windows = append(windows, WindowEstimate{
			Start:    start,
			End:      end,
			Estimate: EstimateFor(s[start:end], p),
		})
	}
	return Profile{WindowSize: windowSize, Windows: windows}
}

// At returns the (λ, T) estimate whose window encloses index i. Panics
// if i is outside every window (an internal invariant violation: the
// profile must always cover the whole trace it was built from).
func (pr Profile) At(i int) Estimate {
	for _, w := range pr.Windows {
		if i >= w.Start && i < w.End {
			return w.Estimate
		}
	}
	panic("background: profile index out of range")
}

// Lambda and Threshold return piecewise-constant functions over index,
// matching the (λ(i), T(i)) notation C4 consumes.
func (pr Profile) Lambda(i int) float64   { return pr.At(i).Lambda }
func (pr Profile) Threshold(i int) float64 { return pr.At(i).Threshold }

// Package smoothing implements C1: an optional moving-window mean
// pre-filter applied to a trace before threshold estimation and peak
// segmentation. It never touches the raw signal that integration and
// height measurements are computed from.
package smoothing

// Smooth applies a centered moving-window mean, `iterations` times, to
// s and returns a new slice of the same length. window must be odd and
// >= 3. Boundaries truncate the window to the points actually available
// and renormalize, so every output index is always a true mean of
// real neighbors, never a zero-padded one.
//
// If iterations <= 0, Smooth is the identity, but it still returns a
// copy of s, not the same backing array, so callers can treat the
// result like any other fresh slice.
func Smooth(s []float64, window, iterations int) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	if iterations <= 0 || len(s) == 0 {
		return out
	}
	half := window / 2
	scratch := make([]float64, len(s))
	for iter := 0; iter < iterations; iter++ {
		for i := range out {
			lo := i - half
			if lo < 0 {
				lo = 0
			}
			hi := i + half
			if hi > len(out)-1 {
				hi = len(out) - 1
			}
			sum := 0.0
			for j := lo; j <= hi; j++ {
				sum += out[j]
			}
			scratch[i] = sum / float64(hi-lo+1)
		}
		copy(out, scratch)
	}
	return out
}

// SmoothCounts is an integer-count convenience wrapper: it converts to
// float64, smooths, and returns the float64 result.
func SmoothCounts(counts []int64, window, iterations int) []float64 {
	s := make([]float64, len(counts))
	for i, c := range counts {
		s[i] = float64(c)
	}
	return Smooth(s, window, iterations)
}

package config

import (
	"fmt"
	"hash/fnv"
)

const (
	defaultMaxIterations = 4
	defaultSigma         = 0.47
)

// DetectionParams holds the per-(sample, isotope) detection configuration
// described in the data model. Fields are validated by Validate, never by
// the zero value, so a DetectionParams loaded from YAML or built by a
// collaborator must be validated before use.
type DetectionParams struct {
	Include          bool            `yaml:"include"`
	Method           ThresholdMethod `yaml:"method"`
	Alpha            float64         `yaml:"alpha"`
	ManualThreshold  float64         `yaml:"manual_threshold"`
	ApplySmoothing   bool            `yaml:"apply_smoothing"`
	SmoothWindow     int             `yaml:"smooth_window"`
	SmoothIterations int             `yaml:"smooth_iterations"`
	MinContinuous    int             `yaml:"min_continuous"`
	Iterative        bool            `yaml:"iterative"`
	MaxIterations    int             `yaml:"max_iterations,omitempty"`
	UseWindowSize    bool            `yaml:"use_window_size"`
	WindowSize       int             `yaml:"window_size"`
}

// DefaultDetectionParams returns a DetectionParams with the documented
// default field values.
func DefaultDetectionParams() DetectionParams {
	return DetectionParams{
		Include:          true,
		Method:           MethodCurrie,
		Alpha:            0.05,
		SmoothWindow:     3,
		SmoothIterations: 1,
		MinContinuous:    1,
		MaxIterations:    defaultMaxIterations,
		WindowSize:       500,
	}
}

// Validate checks DetectionParams against the ranges in the data model.
// Returns a descriptive error for the first violation found; never panics.
func (p DetectionParams) Validate() error {
	if !IsValidMethod(p.Method) {
		return fmt.Errorf("detection params: unknown method %q", p.Method)
	}
	if p.Method != MethodManual && (p.Alpha <= 0 || p.Alpha > 0.1) {
		return fmt.Errorf("detection params: alpha must be in (0, 0.1], got %v", p.Alpha)
	}
	if p.Method == MethodManual && p.ManualThreshold < 0 {
		return fmt.Errorf("detection params: manual_threshold must be >= 0, got %v", p.ManualThreshold)
	}
	if p.ApplySmoothing {
		if p.SmoothWindow < 3 || p.SmoothWindow > 9 || p.SmoothWindow%2 == 0 {
			return fmt.Errorf("detection params: smooth_window must be an odd int in [3,9], got %d", p.SmoothWindow)
		}
		if p.SmoothIterations < 1 || p.SmoothIterations > 10 {
			return fmt.Errorf("detection params: smooth_iterations must be in [1,10], got %d", p.SmoothIterations)
		}
	}
	if p.MinContinuous < 1 || p.MinContinuous > 5 {
		return fmt.Errorf("detection params: min_continuous must be in [1,5], got %d", p.MinContinuous)
	}
	if p.UseWindowSize && (p.WindowSize < 500 || p.WindowSize > 100000) {
		return fmt.Errorf("detection params: window_size must be in [500,100000], got %d", p.WindowSize)
	}
	if p.MaxIterations < 0 {
		return fmt.Errorf("detection params: max_iterations must be >= 0 (0 means the default of 4), got %d", p.MaxIterations)
	}
	return nil
}

// EffectiveMaxIterations returns MaxIterations, defaulting to 4 when unset.
func (p DetectionParams) EffectiveMaxIterations() int {
	if p.MaxIterations <= 0 {
		return defaultMaxIterations
	}
	return p.MaxIterations
}

// Fingerprint is a change-detection hash guarding Orchestrator
// recomputation. It is a canonical
// serialization of every field that affects C1–C4's output, plus the
// process-wide sigma when Method is CompoundPoissonLognormal, the only
// method sigma affects (Engine.SetSigma separately invalidates every
// key on a sigma change). Two DetectionParams with identical Fingerprint are
// guaranteed to produce identical detection output for identical traces.
//
// Uses FNV-1a64 over an explicit field order — a canonical byte layout
// is cheaper and more robust to float-repr drift than hashing a string
// rendering.
func (p DetectionParams) Fingerprint(sigma float64) uint64 {
	h := fnv.New64a()
	writeBool(h, p.Include)
	writeString(h, string(p.Method))
	writeFloat(h, p.Alpha)
	writeFloat(h, p.ManualThreshold)
	writeBool(h, p.ApplySmoothing)
	writeInt(h, p.SmoothWindow)
	writeInt(h, p.SmoothIterations)
	writeInt(h, p.MinContinuous)
	writeBool(h, p.Iterative)
	writeInt(h, p.EffectiveMaxIterations())
	writeBool(h, p.UseWindowSize)
	writeInt(h, p.WindowSize)
	if p.Method == MethodCompoundPoissonLognormal {
		writeFloat(h, sigma)
	}
	return h.Sum64()
}

func writeBool(h interface{ Write([]byte) (int, error) }, b bool) {
	if b {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}

func writeInt(h interface{ Write([]byte) (int, error) }, v int) {
	h.Write([]byte(fmt.Sprintf("i%d;", v)))
}

func writeFloat(h interface{ Write([]byte) (int, error) }, v float64) {
	h.Write([]byte(fmt.Sprintf("f%b;", v)))
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	h.Write([]byte(s))
	h.Write([]byte{';'})
}

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/icpms/particle-engine/model"
)

// SampleIsotopeKey identifies a (sample, isotope) pair; the Orchestrator
// keys its caches on this pair.
type SampleIsotopeKey struct {
	Sample  string
	Isotope model.IsotopeKey
}

// Document is the on-disk (YAML) representation of everything the
// Orchestrator needs besides the raw traces: per-(sample, isotope)
// detection parameters, the process-wide sigma, and the coincidence
// overlap threshold. Shaped as a versioned workload document: a
// top-level version tag, process-wide scalars, and nested per-unit
// specs with omitempty defaults.
type Document struct {
	Version                    string                                 `yaml:"version"`
	Sigma                      float64                                `yaml:"sigma,omitempty"`
	OverlapThresholdPercentage float64                                `yaml:"overlap_threshold_percentage,omitempty"`
	Samples                    map[string]map[string]DetectionParams `yaml:"samples"`
}

// LoadDocument reads and validates a Document from a YAML file. Missing
// sigma/overlap defaults to the process defaults (0.47, 50).
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading detection document: %w", err)
	}
	var doc Document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing detection document: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) applyDefaults() {
	if d.Sigma <= 0 {
		d.Sigma = defaultSigma
	}
	if d.OverlapThresholdPercentage <= 0 {
		d.OverlapThresholdPercentage = 50
	}
}

// Validate checks every per-isotope DetectionParams entry and the
// document-level fields.
func (d *Document) Validate() error {
	if d.Sigma <= 0 {
		return fmt.Errorf("detection document: sigma must be > 0, got %v", d.Sigma)
	}
	if d.OverlapThresholdPercentage < 0 || d.OverlapThresholdPercentage > 100 {
		return fmt.Errorf("detection document: overlap_threshold_percentage must be in [0,100], got %v", d.OverlapThresholdPercentage)
	}
	for sample, isotopes := range d.Samples {
		for isotope, params := range isotopes {
			if err := params.Validate(); err != nil {
				return fmt.Errorf("sample %q isotope %q: %w", sample, isotope, err)
			}
		}
	}
	return nil
}

// ParamsFor returns the DetectionParams configured for (sample, element
// label), and whether it was present in the document.
func (d *Document) ParamsFor(sample, elementLabel string) (DetectionParams, bool) {
	isotopes, ok := d.Samples[sample]
	if !ok {
		return DetectionParams{}, false
	}
	p, ok := isotopes[elementLabel]
	return p, ok
}

// LoadCalibrationState reads a CalibrationState document. The shape
// mirrors CalibrationState itself; it is kept as a distinct file from
// per-isotope detection parameters because it is process-wide and changes on a different cadence.
func LoadCalibrationState(path string) (*CalibrationState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading calibration state: %w", err)
	}
	var wire calibrationWire
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&wire); err != nil {
		return nil, fmt.Errorf("parsing calibration state: %w", err)
	}
	return wire.toState(), nil
}

// calibrationWire is the flat, YAML-friendly mirror of CalibrationState
// (maps keyed by IsotopeKey can't round-trip through yaml.v3 directly
// since IsotopeKey is a struct, not a scalar).
type calibrationWire struct {
	TransportRateMethods map[string]float64 `yaml:"transport_rate_methods"`
	SelectedRateMethods  []string           `yaml:"selected_rate_methods"`
	Elements             []elementWire      `yaml:"elements"`
}

type elementWire struct {
	Element         string                            `yaml:"element"`
	MassAmu         float64                           `yaml:"mass_amu"`
	Preference      IonicVariant                      `yaml:"method_preference,omitempty"`
	Variants        map[IonicVariant]IonicCalibration `yaml:"variants,omitempty"`
	Density         float64                           `yaml:"density,omitempty"`
	MolecularWeight float64                           `yaml:"molecular_weight,omitempty"`
	CompoundDensity float64                           `yaml:"compound_density,omitempty"`
	MassFraction    float64                           `yaml:"mass_fraction,omitempty"`
	AtomicMass      float64                           `yaml:"atomic_mass,omitempty"`
}

func (w *calibrationWire) toState() *CalibrationState {
	state := &CalibrationState{
		TransportRateMethods: w.TransportRateMethods,
		SelectedRateMethods:  w.SelectedRateMethods,
		Ionic:                make(map[model.IsotopeKey]ElementCalibration, len(w.Elements)),
		MethodPreference:     make(map[model.IsotopeKey]IonicVariant, len(w.Elements)),
	}
	for _, e := range w.Elements {
		key := model.NewIsotopeKey(e.Element, e.MassAmu)
		state.Ionic[key] = ElementCalibration{
			Variants:        e.Variants,
			Density:         e.Density,
			MolecularWeight: e.MolecularWeight,
			CompoundDensity: e.CompoundDensity,
			MassFraction:    e.MassFraction,
			AtomicMass:      e.AtomicMass,
		}
		if e.Preference != "" {
			state.MethodPreference[key] = e.Preference
		}
	}
	return state
}

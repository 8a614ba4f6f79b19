package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icpms/particle-engine/model"
)

func TestCalibrationState_TransportRate_MeanOfSelected(t *testing.T) {
	// GIVEN two transport-rate methods and only one selected
	c := CalibrationState{
		TransportRateMethods: map[string]float64{"fast-flush": 12.0, "slow-flush": 8.0},
		SelectedRateMethods:  []string{"fast-flush"},
	}

	// THEN TransportRate returns just that method's value
	assert.Equal(t, 12.0, c.TransportRate())
}

func TestCalibrationState_TransportRate_MeansMultiple(t *testing.T) {
	// GIVEN two selected methods
	c := CalibrationState{
		TransportRateMethods: map[string]float64{"a": 10.0, "b": 20.0},
		SelectedRateMethods:  []string{"a", "b"},
	}

	// THEN TransportRate returns their mean
	assert.Equal(t, 15.0, c.TransportRate())
}

func TestCalibrationState_TransportRate_UncalibratedWhenEmpty(t *testing.T) {
	// GIVEN no selected methods
	c := CalibrationState{}

	// THEN TransportRate is the uncalibrated sentinel 0
	assert.Equal(t, 0.0, c.TransportRate())
}

func TestCalibrationState_SelectIonicVariant_UsesPreference(t *testing.T) {
	// GIVEN an isotope with both Simple and Weighted variants and a preference for Simple
	key := model.NewIsotopeKey("Ag", 107)
	c := CalibrationState{
		Ionic: map[model.IsotopeKey]ElementCalibration{
			key: {Variants: map[IonicVariant]IonicCalibration{
				VariantSimple:   {Slope: 1},
				VariantWeighted: {Slope: 2},
			}},
		},
		MethodPreference: map[model.IsotopeKey]IonicVariant{key: VariantSimple},
	}

	// WHEN SelectIonicVariant is called
	variant, cal, ok := c.SelectIonicVariant(key)

	// THEN it honors the explicit preference over the fallback order
	assert.True(t, ok)
	assert.Equal(t, VariantSimple, variant)
	assert.Equal(t, 1.0, cal.Slope)
}

func TestCalibrationState_SelectIonicVariant_FallsBackWeightedFirst(t *testing.T) {
	// GIVEN an isotope with no preference and both Simple and Weighted data
	key := model.NewIsotopeKey("Au", 197)
	c := CalibrationState{
		Ionic: map[model.IsotopeKey]ElementCalibration{
			key: {Variants: map[IonicVariant]IonicCalibration{
				VariantSimple:   {Slope: 1},
				VariantWeighted: {Slope: 2},
			}},
		},
	}

	// WHEN SelectIonicVariant is called
	variant, cal, ok := c.SelectIonicVariant(key)

	// THEN the fallback order (Weighted > Simple > Zero > Manual) wins
	assert.True(t, ok)
	assert.Equal(t, VariantWeighted, variant)
	assert.Equal(t, 2.0, cal.Slope)
}

func TestCalibrationState_SelectIonicVariant_MissingIsotope(t *testing.T) {
	// GIVEN an empty calibration state
	c := CalibrationState{}

	// WHEN SelectIonicVariant is called for an unconfigured isotope
	_, _, ok := c.SelectIonicVariant(model.NewIsotopeKey("Pt", 195))

	// THEN it reports no data
	assert.False(t, ok)
}

package traceio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icpms/particle-engine/model"
)

func writeTempCSV(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.csv")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadWideCSV_TwoIsotopes(t *testing.T) {
	path := writeTempCSV(t, "time_s,Ag-107,Au-197\n0.00,1,2\n0.01,3,4\n0.02,5,6\n")

	cols, dwellS, err := LoadWideCSV(path)

	require.NoError(t, err)
	assert.InDelta(t, 0.01, dwellS, 1e-9)
	require.Len(t, cols, 2)
	assert.Equal(t, model.NewIsotopeKey("Ag", 107), cols[0].Isotope)
	assert.Equal(t, []int64{1, 3, 5}, cols[0].Counts)
	assert.Equal(t, []int64{2, 4, 6}, cols[1].Counts)
}

func TestLoadWideCSV_RejectsWrongFirstColumn(t *testing.T) {
	path := writeTempCSV(t, "ts,Ag-107\n0.00,1\n")

	_, _, err := LoadWideCSV(path)

	assert.Error(t, err)
}

func TestLoadWideCSV_RejectsMalformedIsotopeLabel(t *testing.T) {
	path := writeTempCSV(t, "time_s,Silver\n0.00,1\n0.01,2\n")

	_, _, err := LoadWideCSV(path)

	assert.Error(t, err)
}

func TestWriteParticlesCSV_EmitsHeaderAndRows(t *testing.T) {
	particles := []model.Particle{
		{Isotope: model.NewIsotopeKey("Ag", 107), LeftIdx: 1, PeakIdx: 2, RightIdx: 3, TotalCounts: 10, MaxHeight: 8, Threshold: 2, Background: 1, DwellS: 0.01},
	}
	var buf bytes.Buffer

	err := WriteParticlesCSV(&buf, "s1", particles)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "sample")
	assert.Contains(t, buf.String(), "s1")
	assert.Contains(t, buf.String(), "Ag-107.0000")
}

func TestWriteQuantifiedCSV_EmitsHeaderAndRows(t *testing.T) {
	quants := []model.Quantified{
		model.UncalibratedQuantified(model.NewIsotopeKey("Ag", 107)),
	}
	var buf bytes.Buffer

	err := WriteQuantifiedCSV(&buf, quants)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "uncalibrated")
}

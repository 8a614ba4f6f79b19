// Package traceio loads raw count traces from wide-format CSV files and
// writes detection/quantitation results back out as CSV, mirroring the
// CSV output conventions of pthm-soup/telemetry/output.go.
package traceio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/icpms/particle-engine/model"
)

// Column is one isotope's raw counts read from a wide trace CSV.
type Column struct {
	Isotope model.IsotopeKey
	Counts  []int64
}

// LoadWideCSV reads a CSV shaped as "time_s,<Element>-<MassAmu>,...",
// one row per sample and one column per isotope, and returns the
// per-isotope columns plus the dwell time inferred from the first two
// time_s rows. The header's isotope columns are unknown at compile
// time, so this reads raw records with encoding/csv rather than
// gocsv's struct-tag unmarshaling (gocsv is used below for the
// fixed-shape result rows instead).
func LoadWideCSV(path string) ([]Column, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening trace csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("reading trace csv header: %w", err)
	}
	if len(header) < 2 || header[0] != "time_s" {
		return nil, 0, fmt.Errorf("trace csv: expected first column %q, got %q", "time_s", header[0])
	}

	cols := make([]Column, len(header)-1)
	for i, label := range header[1:] {
		isotope, err := parseIsotopeLabel(label)
		if err != nil {
			return nil, 0, fmt.Errorf("trace csv column %d: %w", i+1, err)
		}
		cols[i].Isotope = isotope
	}

	var dwellS float64
	var prevTimeS float64
	haveDwell, havePrev := false, false
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("reading trace csv row: %w", err)
		}
		if len(record) != len(header) {
			return nil, 0, fmt.Errorf("trace csv row has %d fields, want %d", len(record), len(header))
		}
		timeS, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			return nil, 0, fmt.Errorf("trace csv row: parsing time_s %q: %w", record[0], err)
		}
		if havePrev && !haveDwell {
			dwellS = timeS - prevTimeS
			haveDwell = true
		}
		prevTimeS, havePrev = timeS, true

		for i, field := range record[1:] {
			count, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("trace csv row: parsing count %q: %w", field, err)
			}
			cols[i].Counts = append(cols[i].Counts, count)
		}
	}
	if !haveDwell {
		return nil, 0, fmt.Errorf("trace csv: need at least two rows to infer dwell_s")
	}
	return cols, dwellS, nil
}

// parseIsotopeLabel parses "Ag-107" into an IsotopeKey.
func parseIsotopeLabel(label string) (model.IsotopeKey, error) {
	parts := strings.SplitN(label, "-", 2)
	if len(parts) != 2 {
		return model.IsotopeKey{}, fmt.Errorf("malformed isotope label %q, want Element-MassAmu", label)
	}
	mass, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return model.IsotopeKey{}, fmt.Errorf("isotope label %q: %w", label, err)
	}
	return model.NewIsotopeKey(parts[0], mass), nil
}

type particleRow struct {
	Sample      string  `csv:"sample"`
	Isotope     string  `csv:"isotope"`
	LeftIdx     int     `csv:"left_idx"`
	PeakIdx     int     `csv:"peak_idx"`
	RightIdx    int     `csv:"right_idx"`
	TotalCounts float64 `csv:"total_counts"`
	MaxHeight   float64 `csv:"max_height"`
	Background  float64 `csv:"background"`
	Threshold   float64 `csv:"threshold"`
	SNR         float64 `csv:"snr"`
}

// WriteParticlesCSV writes one row per detected particle.
func WriteParticlesCSV(w io.Writer, sample string, particles []model.Particle) error {
	rows := make([]particleRow, len(particles))
	for i, p := range particles {
		rows[i] = particleRow{
			Sample:      sample,
			Isotope:     p.Isotope.String(),
			LeftIdx:     p.LeftIdx,
			PeakIdx:     p.PeakIdx,
			RightIdx:    p.RightIdx,
			TotalCounts: p.TotalCounts,
			MaxHeight:   p.MaxHeight,
			Background:  p.Background,
			Threshold:   p.Threshold,
			SNR:         p.SNR(),
		}
	}
	return gocsv.Marshal(rows, w)
}

type quantifiedRow struct {
	Isotope        string  `csv:"isotope"`
	Uncalibrated   bool    `csv:"uncalibrated"`
	ElementMassFg  float64 `csv:"element_mass_fg"`
	CompoundMassFg float64 `csv:"compound_mass_fg"`
	MolesFmol      float64 `csv:"moles_fmol"`
	DiameterNm     float64 `csv:"diameter_nm"`
	MassPercentage float64 `csv:"mass_percentage"`
	MolePercentage float64 `csv:"mole_percentage"`
}

// WriteQuantifiedCSV writes one row per quantified element.
func WriteQuantifiedCSV(w io.Writer, quants []model.Quantified) error {
	rows := make([]quantifiedRow, len(quants))
	for i, q := range quants {
		rows[i] = quantifiedRow{
			Isotope:        q.Isotope.String(),
			Uncalibrated:   q.Uncalibrated,
			ElementMassFg:  q.ElementMassFg,
			CompoundMassFg: q.CompoundMassFg,
			MolesFmol:      q.MolesFmol,
			DiameterNm:     q.DiameterNm,
			MassPercentage: q.MassPercentage,
			MolePercentage: q.MolePercentage,
		}
	}
	return gocsv.Marshal(rows, w)
}

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/icpms/particle-engine/config"
	"github.com/icpms/particle-engine/engine"
	"github.com/icpms/particle-engine/internal/traceio"
	"github.com/icpms/particle-engine/model"
)

var (
	detectTracePath  string
	detectConfigPath string
	detectSample     string
	detectOutPath    string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run particle detection over a trace and print per-isotope summaries",
	Run: func(cmd *cobra.Command, args []string) {
		e, keys, err := loadAndDetect(detectTracePath, detectConfigPath, detectSample)
		if err != nil {
			logrus.Fatalf("detect: %v", err)
		}

		var allParticles []model.Particle
		for _, key := range keys {
			summary := e.Summarize(detectSample, key)
			logrus.Infof("%s: %d particles, total=%.1f mean=%.2f median=%.2f",
				key, summary.ParticleCount, summary.TotalCounts, summary.MeanCounts, summary.MedianCounts)
			particles, _ := e.ParticlesFor(detectSample, key)
			allParticles = append(allParticles, particles...)
		}
		for _, w := range e.Warnings() {
			logrus.Warnf("%s: %s (%s)", w.Kind, w.Detail, w.Isotope)
		}

		if detectOutPath != "" {
			if err := writeParticlesTo(detectOutPath, detectSample, allParticles); err != nil {
				logrus.Fatalf("detect: writing output: %v", err)
			}
		}
	},
}

// loadAndDetect loads a wide trace CSV and a DetectionParams document,
// wires them into a fresh Engine, and runs detection for sampleID. It
// returns the isotopes found, in CSV header order.
func loadAndDetect(tracePath, configPath, sampleID string) (*engine.Engine, []model.IsotopeKey, error) {
	cols, dwellS, err := traceio.LoadWideCSV(tracePath)
	if err != nil {
		return nil, nil, err
	}
	doc, err := config.LoadDocument(configPath)
	if err != nil {
		return nil, nil, err
	}

	e := engine.New(doc.Sigma)
	e.SetOverlapThresholdPercentage(doc.OverlapThresholdPercentage)

	keys := make([]model.IsotopeKey, 0, len(cols))
	for _, col := range cols {
		trace, err := model.NewTrace(sampleID, col.Isotope, dwellS, col.Counts)
		if err != nil {
			return nil, nil, fmt.Errorf("isotope %s: %w", col.Isotope, err)
		}
		params, ok := doc.ParamsFor(sampleID, col.Isotope.String())
		if !ok {
			params = config.DefaultDetectionParams()
		}
		if err := params.Validate(); err != nil {
			return nil, nil, fmt.Errorf("isotope %s: %w", col.Isotope, err)
		}
		e.SetTrace(sampleID, col.Isotope, trace)
		e.SetDetectionParams(sampleID, col.Isotope, params)
		keys = append(keys, col.Isotope)
	}

	if err := e.Detect(context.Background(), sampleID); err != nil {
		return nil, nil, err
	}
	return e, keys, nil
}

func writeParticlesTo(path, sample string, particles []model.Particle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return traceio.WriteParticlesCSV(f, sample, particles)
}

func init() {
	detectCmd.Flags().StringVar(&detectTracePath, "trace", "", "Path to the wide-format trace CSV")
	detectCmd.Flags().StringVar(&detectConfigPath, "config", "", "Path to the DetectionParams document (YAML)")
	detectCmd.Flags().StringVar(&detectSample, "sample", "sample1", "Sample identifier")
	detectCmd.Flags().StringVar(&detectOutPath, "out", "", "Path to write detected particles as CSV (optional)")
	detectCmd.MarkFlagRequired("trace")
	detectCmd.MarkFlagRequired("config")
}

package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/icpms/particle-engine/config"
	"github.com/icpms/particle-engine/internal/traceio"
	"github.com/icpms/particle-engine/model"
)

var (
	quantifyTracePath       string
	quantifyConfigPath      string
	quantifyCalibrationPath string
	quantifySample          string
	quantifyOutPath         string
)

var quantifyCmd = &cobra.Command{
	Use:   "quantify",
	Short: "Detect particles and convert them to mass, moles, and diameter using a calibration document",
	Run: func(cmd *cobra.Command, args []string) {
		e, _, err := loadAndDetect(quantifyTracePath, quantifyConfigPath, quantifySample)
		if err != nil {
			logrus.Fatalf("quantify: %v", err)
		}

		calibration, err := config.LoadCalibrationState(quantifyCalibrationPath)
		if err != nil {
			logrus.Fatalf("quantify: %v", err)
		}
		e.SetCalibrationState(*calibration)
		e.RecomputeQuantitation(quantifySample)

		quants := e.Quantified(quantifySample)
		for _, q := range quants {
			if q.Uncalibrated {
				logrus.Warnf("%s: uncalibrated", q.Isotope)
				continue
			}
			logrus.Infof("%s: mass=%.3ffg moles=%.4ffmol diameter=%.2fnm",
				q.Isotope, q.ElementMassFg, q.MolesFmol, q.DiameterNm)
		}
		for _, w := range e.Warnings() {
			logrus.Warnf("%s: %s (%s)", w.Kind, w.Detail, w.Isotope)
		}

		if quantifyOutPath != "" {
			if err := writeQuantifiedTo(quantifyOutPath, quants); err != nil {
				logrus.Fatalf("quantify: writing output: %v", err)
			}
		}
	},
}

func writeQuantifiedTo(path string, quants []model.Quantified) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return traceio.WriteQuantifiedCSV(f, quants)
}

func init() {
	quantifyCmd.Flags().StringVar(&quantifyTracePath, "trace", "", "Path to the wide-format trace CSV")
	quantifyCmd.Flags().StringVar(&quantifyConfigPath, "config", "", "Path to the DetectionParams document (YAML)")
	quantifyCmd.Flags().StringVar(&quantifyCalibrationPath, "calibration", "", "Path to the CalibrationState document (YAML)")
	quantifyCmd.Flags().StringVar(&quantifySample, "sample", "sample1", "Sample identifier")
	quantifyCmd.Flags().StringVar(&quantifyOutPath, "out", "", "Path to write quantified results as CSV (optional)")
	quantifyCmd.MarkFlagRequired("trace")
	quantifyCmd.MarkFlagRequired("config")
	quantifyCmd.MarkFlagRequired("calibration")
}

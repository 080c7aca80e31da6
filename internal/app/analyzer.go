// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/accel_calibration/internal/analysis"
	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/plot"
)

// Mode selects what imu_analyzer does with its input.
type Mode int

const (
	ModeAnalyze Mode = iota // statistics and time axis report
	ModeClean               // as ModeAnalyze, plus a copy with only valid rows
	ModeCalib               // fit and apply a calibration
	ModeApply               // apply the correction of an earlier report
)

// AnalyzerOptions are the imu_analyzer flags after parsing. Zero values fall back to
// the configuration.
type AnalyzerOptions struct {
	Input string
	Mode  Mode

	ApplyReport string // report JSON for ModeApply
	Positions   string
	Output      string
	Report      string

	Gravity     float64
	NMEA        string // derive gravity from this NMEA log
	// nil fractions fall back to the config one by one
	SteadyStart *float64
	SteadyEnd   *float64

	Plot    string // residual chart PNG
	Publish bool

	Out io.Writer
}

// RunAnalyzer executes one imu_analyzer invocation.
func RunAnalyzer(opts AnalyzerOptions) error {
	if opts.Input == "" {
		return fmt.Errorf("missing required option: -input <file>")
	}
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	switch opts.Mode {
	case ModeAnalyze, ModeClean:
		return runAnalysis(opts)
	case ModeCalib:
		return runCalibration(opts, cfg)
	case ModeApply:
		return runApply(opts)
	default:
		return fmt.Errorf("unknown mode %d", opts.Mode)
	}
}

func runAnalysis(opts AnalyzerOptions) error {
	cleanPath := ""
	if opts.Mode == ModeClean {
		cleanPath = opts.Output
		if cleanPath == "" {
			cleanPath = imulog.CleanPath(opts.Input)
		}
	}

	rep, err := analysis.Analyze(opts.Input, cleanPath)
	if err != nil {
		return err
	}

	reportPath := opts.Report
	if reportPath == "" {
		reportPath = imulog.ReportPath(opts.Input)
	}
	if err := analysis.WriteReport(reportPath, rep); err != nil {
		return err
	}
	fmt.Fprintf(opts.Out, "Report written to: %s\n", reportPath)
	fmt.Fprint(opts.Out, RenderAnalysis(rep))
	return nil
}

func runCalibration(opts AnalyzerOptions, cfg *config.Config) error {
	g := cfg.Gravity
	if opts.Gravity > 0 {
		g = opts.Gravity
	}
	if opts.NMEA != "" {
		local, _, err := LocalGravity(opts.NMEA)
		if err != nil {
			return fmt.Errorf("gravity from %s: %w", opts.NMEA, err)
		}
		g = local
	}

	start, end := cfg.SteadyStartFrac, cfg.SteadyEndFrac
	if opts.SteadyStart != nil {
		start = *opts.SteadyStart
	}
	if opts.SteadyEnd != nil {
		end = *opts.SteadyEnd
	}

	positions := opts.Positions
	if positions == "" {
		positions = cfg.PositionFile
	}

	res, err := calibration.Run(calibration.Options{
		InputPath:       opts.Input,
		PositionPath:    positions,
		OutputPath:      opts.Output,
		ReportPath:      opts.Report,
		Gravity:         g,
		SteadyStartFrac: start,
		SteadyEndFrac:   end,
	})
	if err != nil {
		return err
	}
	fmt.Fprint(opts.Out, RenderSummary(res))

	if opts.Plot != "" {
		title := fmt.Sprintf("%s: |residual| per position (m/s²)", filepath.Base(opts.Input))
		if err := plot.WritePNG(opts.Plot, plot.ResidualChart(title, plot.BarsFromPoints(res.Points[:]))); err != nil {
			return err
		}
		fmt.Fprintf(opts.Out, "Residual chart written to: %s\n", opts.Plot)
	}

	if opts.Publish {
		pub, err := NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientIDPublisher, cfg.TopicCalibration)
		if err != nil {
			return err
		}
		defer pub.Close()
		msg := CalibrationMessage{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Input:     filepath.Base(opts.Input),
			Report:    res.Report(),
		}
		if err := pub.Publish(msg); err != nil {
			return err
		}
	}
	return nil
}

func runApply(opts AnalyzerOptions) error {
	if opts.ApplyReport == "" {
		return fmt.Errorf("apply mode needs a calibration report")
	}
	rep, err := calibration.ReadReport(opts.ApplyReport)
	if err != nil {
		return err
	}
	corr, err := rep.Correction()
	if err != nil {
		return err
	}

	out := opts.Output
	if out == "" {
		out = imulog.CalibPath(opts.Input)
	}
	n, err := calibration.CorrectLog(imulog.FileSource{Path: opts.Input}, corr, out)
	if err != nil {
		return err
	}
	log.Printf("analyzer: applied %s to %d rows", opts.ApplyReport, n)
	fmt.Fprintf(opts.Out, "Corrected log written to: %s (%d rows)\n", out, n)
	return nil
}

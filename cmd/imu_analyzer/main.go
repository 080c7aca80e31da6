// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// imu_analyzer inspects and calibrates accelerometer data logs.
//
//	imu_analyzer -input log.csv                 statistics and time axis report
//	imu_analyzer -input log.csv -clean          also write log_clean.csv
//	imu_analyzer -input log.csv -calib          8-position calibration, writes log_calib.csv
//	imu_analyzer -input log.csv -apply r.json   correct a log with an earlier calibration
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/relabs-tech/accel_calibration/internal/app"
	"github.com/relabs-tech/accel_calibration/internal/config"
)

func main() {
	input := flag.String("input", "", "input CSV data log (t_ms,ax,ay,az)")
	clean := flag.Bool("clean", false, "write a cleaned copy next to the input with _clean suffix")
	calib := flag.Bool("calib", false, "calibration mode (coefficients, corrected log and report)")
	apply := flag.String("apply", "", "apply the correction stored in this calibration report")
	positions := flag.String("positions", "", "position table (default POSITION.txt next to the input)")
	output := flag.String("output", "", "output data log (default <input>_calib.csv or <input>_clean.csv)")
	report := flag.String("report", "", "report JSON path, \"-\" to skip (calibration mode)")
	gravity := flag.Float64("gravity", 0, "local gravity in m/s² (default from config)")
	nmea := flag.String("nmea", "", "derive local gravity from the GGA fix in this NMEA log")
	steadyStart := flag.Float64("steady-start", 0, "steady window start as a fraction of a block (default from config)")
	steadyEnd := flag.Float64("steady-end", 0, "steady window end as a fraction of a block (default from config)")
	configPath := flag.String("config", "", "path to configuration file (default built-in values)")
	plotPath := flag.String("plot", "", "write a residual chart PNG (calibration mode)")
	publish := flag.Bool("publish", false, "publish the calibration on the MQTT calibration topic")
	flag.Parse()

	mode := app.ModeAnalyze
	modes := 0
	if *clean {
		mode = app.ModeClean
		modes++
	}
	if *calib {
		mode = app.ModeCalib
		modes++
	}
	if *apply != "" {
		mode = app.ModeApply
		modes++
	}
	if modes > 1 {
		usageError("only one of -clean, -calib and -apply allowed")
	}
	if *input == "" {
		usageError("missing required option: -input <file>")
	}

	if err := config.InitGlobal(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, app.RenderError(fmt.Errorf("failed to load config: %w", err)))
		os.Exit(1)
	}

	// Only flags given on the command line override the config window.
	var startFrac, endFrac *float64
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "steady-start":
			startFrac = steadyStart
		case "steady-end":
			endFrac = steadyEnd
		}
	})

	err := app.RunAnalyzer(app.AnalyzerOptions{
		Input:       *input,
		Mode:        mode,
		ApplyReport: *apply,
		Positions:   *positions,
		Output:      *output,
		Report:      *report,
		Gravity:     *gravity,
		NMEA:        *nmea,
		SteadyStart: startFrac,
		SteadyEnd:   endFrac,
		Plot:        *plotPath,
		Publish:     *publish,
		Out:         os.Stdout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, app.RenderError(err))
		os.Exit(1)
	}
}

func usageError(msg string) {
	fmt.Fprintln(os.Stderr, "Error: "+msg)
	flag.Usage()
	os.Exit(1)
}

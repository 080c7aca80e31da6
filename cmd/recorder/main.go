// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/accel_calibration/internal/app"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default built-in values)")
	source := flag.String("source", sensors.KindMQTT, "sample source: mqtt, serial, spi or sim")
	output := flag.String("output", "capture.csv", "data log to write; POSITION.txt is written next to it")
	positions := flag.String("positions", "POSITION.txt", "position table to walk through")
	flag.Parse()

	log.Println("starting accelerometer recorder")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunRecorder(*source, *output, *positions); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

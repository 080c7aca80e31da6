// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"os"

	"github.com/relabs-tech/accel_calibration/internal/app"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (default built-in values)")
	source := flag.String("source", sensors.KindMQTT, "sample source: mqtt, serial, spi or sim")
	flag.Parse()

	log.Println("starting tilt console")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunTiltConsole(*source, os.Stdout); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

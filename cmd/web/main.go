// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/accel_calibration/internal/app"
	"github.com/relabs-tech/accel_calibration/internal/config"
)

func main() {
	configPath := flag.String("config", "./calibration_config.txt", "path to configuration file")
	publish := flag.Bool("publish", false, "publish finished calibrations over MQTT")
	flag.Parse()

	log.Println("starting calibration web server")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunWeb(*publish); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

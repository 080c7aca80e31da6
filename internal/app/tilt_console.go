// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/orientation"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

// RunTiltConsole prints the live tilt of the rig so the operator can line up a
// position before capturing it.
func RunTiltConsole(kind string, out io.Writer) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	src, err := sensors.Open(kind, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		s, err := src.NextSample()
		if err != nil {
			return err
		}
		a := vecmath.Vec3{X: s.Ax, Y: s.Ay, Z: s.Az}
		fmt.Fprintln(out, formatTilt(a))
	}
	return nil
}

func formatTilt(a vecmath.Vec3) string {
	tilt := orientation.TiltFromAccel(a)
	return fmt.Sprintf("ROLL=%7.2f  PITCH=%7.2f  |a|=%8.4f", tilt.Roll, tilt.Pitch, a.Norm())
}

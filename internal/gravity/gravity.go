// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package gravity estimates the local magnitude of gravity, the reference the
// calibration fits against.
package gravity

import (
	"fmt"
	"math"

	"github.com/relabs-tech/accel_calibration/internal/gps"
)

// WGS84 normal gravity (Somigliana) constants.
const (
	equatorGravity = 9.7803253359     // m/s²
	somiglianaK    = 0.00193185265241 // (b·gp)/(a·ge) - 1
	eccentricitySq = 0.00669437999013
	freeAirGrad    = 3.086e-6 // m/s² per metre
)

// Normal returns the normal gravity in m/s² at latitudeDeg and altitudeM above the
// ellipsoid, with a linear free-air correction.
func Normal(latitudeDeg, altitudeM float64) float64 {
	s := math.Sin(latitudeDeg * math.Pi / 180.0)
	s2 := s * s
	g0 := equatorGravity * (1 + somiglianaK*s2) / math.Sqrt(1-eccentricitySq*s2)
	return g0 - freeAirGrad*altitudeM
}

// FromFix computes the normal gravity at a GPS fix.
func FromFix(fix gps.Fix) (float64, error) {
	if fix.Latitude < -90 || fix.Latitude > 90 {
		return 0, fmt.Errorf("latitude %g out of range", fix.Latitude)
	}
	return Normal(fix.Latitude, fix.AltitudeM), nil
}

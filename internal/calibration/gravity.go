// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"math"

	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

const degToRad = math.Pi / 180.0

// TrueGravity returns the gravity vector seen in the sensor frame when the rig is
// turned by -outer and then -inner degrees from the reference (g, 0, 0).
func TrueGravity(g float64, innerDeg, outerDeg int) vecmath.Vec3 {
	inner := float64(innerDeg) * degToRad
	outer := float64(outerDeg) * degToRad

	so, co := math.Sincos(outer)
	si, ci := math.Sincos(inner)
	return vecmath.Vec3{
		X: g * co,
		Y: -g * so * ci,
		Z: g * so * si,
	}
}

// referenceVectors evaluates TrueGravity for every position.
func referenceVectors(g float64, table Positions) [NumPositions]vecmath.Vec3 {
	var out [NumPositions]vecmath.Vec3
	for i, p := range table {
		out[i] = TrueGravity(g, p.Inner, p.Outer)
	}
	return out
}

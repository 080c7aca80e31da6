// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math/rand/v2"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

// SimModel is the distortion a simulated accelerometer applies to true gravity.
var SimModel = calibration.SensorModel{
	M: vecmath.Mat3{A: [3][3]float64{
		{1.021, 0.004, -0.006},
		{-0.003, 0.987, 0.005},
		{0.007, -0.002, 1.012},
	}},
	B: vecmath.Vec3{X: 0.14, Y: -0.09, Z: 0.21},
}

// SimSource is a rig without hardware: it reports M·g_true + b plus Gaussian noise for
// whatever position the rig was last turned to. Timestamps advance by a fixed step.
type SimSource struct {
	Model   calibration.SensorModel
	Gravity float64
	Noise   float64 // standard deviation per axis, m/s²
	StepMs  float64

	rng *rand.Rand
	pos calibration.Position
	t   float64
}

// NewSimSource creates a simulator with a fixed seed so runs are reproducible.
func NewSimSource(model calibration.SensorModel, g, noise, stepMs float64, seed uint64) *SimSource {
	return &SimSource{
		Model:   model,
		Gravity: g,
		Noise:   noise,
		StepMs:  stepMs,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// SetPosition turns the simulated rig.
func (s *SimSource) SetPosition(p calibration.Position) {
	s.pos = p
}

func (s *SimSource) NextSample() (imu.Sample, error) {
	g := calibration.TrueGravity(s.Gravity, s.pos.Inner, s.pos.Outer)
	a := s.Model.M.MulVec(g).Add(s.Model.B)
	smp := imu.Sample{
		Source: "sim",
		TimeMs: s.t,
		Ax:     a.X + s.rng.NormFloat64()*s.Noise,
		Ay:     a.Y + s.rng.NormFloat64()*s.Noise,
		Az:     a.Z + s.rng.NormFloat64()*s.Noise,
	}
	s.t += s.StepMs
	return smp, nil
}

func (s *SimSource) Close() error { return nil }

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package vecmath holds the small fixed-size vector and matrix types used by the
// accelerometer model: 3-vectors, 3x3 matrices and the closed-form 3x3 inverse.
package vecmath

import (
	"errors"
	"fmt"
	"math"
)

// SingularEps is the smallest |det| accepted by Invert.
const SingularEps = 1e-12

// ErrSingular is returned when a matrix cannot be inverted.
var ErrSingular = errors.New("vecmath: matrix is singular")

// Vec3 is a plain 3-component vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Mat3 is a row-major 3x3 matrix.
type Mat3 struct {
	A [3][3]float64
}

// Identity returns the 3x3 identity matrix.
func Identity() Mat3 {
	return Mat3{A: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// Sub returns v - u.
func (v Vec3) Sub(u Vec3) Vec3 {
	return Vec3{X: v.X - u.X, Y: v.Y - u.Y, Z: v.Z - u.Z}
}

// Add returns v + u.
func (v Vec3) Add(u Vec3) Vec3 {
	return Vec3{X: v.X + u.X, Y: v.Y + u.Y, Z: v.Z + u.Z}
}

// Norm returns the euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// MulVec returns m·v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m.A[0][0]*v.X + m.A[0][1]*v.Y + m.A[0][2]*v.Z,
		Y: m.A[1][0]*v.X + m.A[1][1]*v.Y + m.A[1][2]*v.Z,
		Z: m.A[2][0]*v.X + m.A[2][1]*v.Y + m.A[2][2]*v.Z,
	}
}

// Det returns the determinant of m.
func (m Mat3) Det() float64 {
	c := m.cofactors()
	return m.A[0][0]*c[0][0] + m.A[0][1]*c[0][1] + m.A[0][2]*c[0][2]
}

func (m Mat3) cofactors() [3][3]float64 {
	a := m.A
	return [3][3]float64{
		{
			a[1][1]*a[2][2] - a[1][2]*a[2][1],
			-(a[1][0]*a[2][2] - a[1][2]*a[2][0]),
			a[1][0]*a[2][1] - a[1][1]*a[2][0],
		},
		{
			-(a[0][1]*a[2][2] - a[0][2]*a[2][1]),
			a[0][0]*a[2][2] - a[0][2]*a[2][0],
			-(a[0][0]*a[2][1] - a[0][1]*a[2][0]),
		},
		{
			a[0][1]*a[1][2] - a[0][2]*a[1][1],
			-(a[0][0]*a[1][2] - a[0][2]*a[1][0]),
			a[0][0]*a[1][1] - a[0][1]*a[1][0],
		},
	}
}

// Invert returns the inverse of m computed as adjugate/det.
// It fails with ErrSingular when |det| < SingularEps.
func Invert(m Mat3) (Mat3, error) {
	c := m.cofactors()
	det := m.A[0][0]*c[0][0] + m.A[0][1]*c[0][1] + m.A[0][2]*c[0][2]
	if math.Abs(det) < SingularEps {
		return Mat3{}, fmt.Errorf("det=%g: %w", det, ErrSingular)
	}

	invDet := 1.0 / det
	var inv Mat3
	// adjugate is the transposed cofactor matrix
	for r := 0; r < 3; r++ {
		for col := 0; col < 3; col++ {
			inv.A[r][col] = c[col][r] * invDet
		}
	}
	return inv, nil
}

// Rows returns m as nested slices, the shape used in JSON reports.
func (m Mat3) Rows() [][]float64 {
	out := make([][]float64, 3)
	for i := range out {
		out[i] = []float64{m.A[i][0], m.A[i][1], m.A[i][2]}
	}
	return out
}

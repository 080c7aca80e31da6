// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

const (
	numParams = 12 // 9 entries of M, 3 of b
	numRows   = 3 * NumPositions
	pivotEps  = 1e-12
)

// ErrSingularSystem is wrapped when the normal equations cannot be solved.
var ErrSingularSystem = errors.New("normal equations singular or ill-conditioned")

// linearSystem is the stacked model measured = M·true + b, one row per axis and position.
type linearSystem struct {
	A [numRows][numParams]float64
	Y [numRows]float64
}

// buildSystem fills row 3i+k with truth_i in columns 3k..3k+2 and 1 in column 9+k.
func buildSystem(truth, means [NumPositions]vecmath.Vec3) linearSystem {
	var s linearSystem
	for i := 0; i < NumPositions; i++ {
		t := truth[i]
		m := [3]float64{means[i].X, means[i].Y, means[i].Z}
		for k := 0; k < 3; k++ {
			r := 3*i + k
			s.A[r][3*k+0] = t.X
			s.A[r][3*k+1] = t.Y
			s.A[r][3*k+2] = t.Z
			s.A[r][9+k] = 1
			s.Y[r] = m[k]
		}
	}
	return s
}

// normalEquations accumulates AᵗA and Aᵗy row by row. Only the upper triangle is
// summed; the lower one is mirrored at the end.
func normalEquations(s linearSystem) ([numParams][numParams]float64, [numParams]float64) {
	var ata [numParams][numParams]float64
	var aty [numParams]float64

	for r := 0; r < numRows; r++ {
		row := &s.A[r]
		for i := 0; i < numParams; i++ {
			ai := row[i]
			if ai == 0 {
				continue
			}
			aty[i] += ai * s.Y[r]
			for j := i; j < numParams; j++ {
				if row[j] == 0 {
					continue
				}
				ata[i][j] += ai * row[j]
			}
		}
	}

	for i := 0; i < numParams; i++ {
		for j := 0; j < i; j++ {
			ata[i][j] = ata[j][i]
		}
	}
	return ata, aty
}

// solveGauss12 solves ata·x = aty by Gaussian elimination with partial pivoting.
func solveGauss12(ata [numParams][numParams]float64, aty [numParams]float64) ([numParams]float64, error) {
	var x [numParams]float64
	a, y := ata, aty

	for col := 0; col < numParams; col++ {
		pivot := col
		best := math.Abs(a[col][col])
		for r := col + 1; r < numParams; r++ {
			if v := math.Abs(a[r][col]); v > best {
				best, pivot = v, r
			}
		}
		if best < pivotEps {
			return x, fmt.Errorf("pivot %.3g at column %d: %w", best, col, ErrSingularSystem)
		}
		if pivot != col {
			a[col], a[pivot] = a[pivot], a[col]
			y[col], y[pivot] = y[pivot], y[col]
		}

		for r := col + 1; r < numParams; r++ {
			f := a[r][col] / a[col][col]
			if f == 0 {
				continue
			}
			for c := col; c < numParams; c++ {
				a[r][c] -= f * a[col][c]
			}
			y[r] -= f * y[col]
		}
	}

	for r := numParams - 1; r >= 0; r-- {
		sum := y[r]
		for c := r + 1; c < numParams; c++ {
			sum -= a[r][c] * x[c]
		}
		if math.Abs(a[r][r]) < pivotEps {
			return x, fmt.Errorf("diagonal %.3g at row %d: %w", a[r][r], r, ErrSingularSystem)
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}

// unpackParams reads M row-major from x[0..8] and b from x[9..11].
func unpackParams(x [numParams]float64) (vecmath.Mat3, vecmath.Vec3) {
	var m vecmath.Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.A[r][c] = x[3*r+c]
		}
	}
	return m, vecmath.Vec3{X: x[9], Y: x[10], Z: x[11]}
}

// conditionNumber is the 2-norm condition number of the normal matrix. It is +Inf for
// a singular matrix.
func conditionNumber(ata [numParams][numParams]float64) float64 {
	data := make([]float64, 0, numParams*numParams)
	for i := range ata {
		data = append(data, ata[i][:]...)
	}
	return mat.Cond(mat.NewSymDense(numParams, data), 2)
}

// fitResiduals returns mean_i - (M·truth_i + b) for every position.
func fitResiduals(m vecmath.Mat3, b vecmath.Vec3, truth, means [NumPositions]vecmath.Vec3) [NumPositions]vecmath.Vec3 {
	var out [NumPositions]vecmath.Vec3
	for i := range truth {
		out[i] = means[i].Sub(m.MulVec(truth[i]).Add(b))
	}
	return out
}

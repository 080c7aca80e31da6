// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"io"
	"math"

	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/stats"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

// SensorModel maps true acceleration to what the sensor reports: measured = M·true + B.
type SensorModel struct {
	M vecmath.Mat3
	B vecmath.Vec3
}

// Correction undoes a SensorModel: corrected = C·(measured - D).
type Correction struct {
	C vecmath.Mat3
	D vecmath.Vec3
}

// NewCorrection inverts model. It fails when M is singular.
func NewCorrection(model SensorModel) (Correction, error) {
	c, err := vecmath.Invert(model.M)
	if err != nil {
		return Correction{}, err
	}
	return Correction{C: c, D: model.B}, nil
}

func (c Correction) Apply(raw vecmath.Vec3) vecmath.Vec3 {
	return c.C.MulVec(raw.Sub(c.D))
}

// RowSink receives corrected rows in input order.
type RowSink interface {
	WriteRow(imulog.Row) error
}

type applySummary struct {
	rows        int
	magCorr     stats.Welford
	maxRawDev   float64
	maxCorrDev  float64
	steadyCount int
}

// applyCorrection is pass 3. Every row is corrected and written; steady rows of valid
// blocks feed the magnitude statistics.
func applyCorrection(src imulog.Source, sink RowSink, corr Correction, geo Geometry, g float64) (applySummary, error) {
	const op = "pass 3"
	var s applySummary

	cur, err := src.Open()
	if err != nil {
		return s, &Error{Kind: KindIO, Op: op, Err: err}
	}
	defer cur.Close()

	for i := 0; ; i++ {
		row, err := cur.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s, &Error{Kind: KindIO, Op: op, Err: err}
		}

		raw := row.Accel()
		fixed := corr.Apply(raw)
		if err := sink.WriteRow(imulog.Row{T: row.T, Ax: fixed.X, Ay: fixed.Y, Az: fixed.Z}); err != nil {
			return s, &Error{Kind: KindIO, Op: op, Err: err}
		}
		s.rows++

		if _, steady, ok := geo.locate(i); !ok || !steady {
			continue
		}
		magCorr := fixed.Norm()
		s.magCorr.Update(magCorr)
		s.steadyCount++
		if d := math.Abs(raw.Norm() - g); d > s.maxRawDev {
			s.maxRawDev = d
		}
		if d := math.Abs(magCorr - g); d > s.maxCorrDev {
			s.maxCorrDev = d
		}
	}

	if s.steadyCount == 0 {
		return s, errorf(KindData, op, "no steady samples")
	}
	return s, nil
}

// CorrectLog applies a stored correction to every row of src and writes the result to
// path. It returns the number of rows written.
func CorrectLog(src imulog.Source, corr Correction, path string) (n int, err error) {
	const op = "correct log"
	w, err := imulog.Create(path)
	if err != nil {
		return 0, &Error{Kind: KindIO, Op: op, Err: err}
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = &Error{Kind: KindIO, Op: op, Err: cerr}
		}
	}()

	if err := w.WriteHeader(); err != nil {
		return 0, &Error{Kind: KindIO, Op: op, Err: err}
	}
	err = imulog.ForEach(src, func(row imulog.Row) error {
		fixed := corr.Apply(row.Accel())
		return w.WriteRow(imulog.Row{T: row.T, Ax: fixed.X, Ay: fixed.Y, Az: fixed.Z})
	})
	if err != nil {
		return w.Rows(), &Error{Kind: KindIO, Op: op, Err: err}
	}
	return w.Rows(), nil
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/stats"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

// Point is the per-position diagnostic of a fit. Position is 1-based.
type Point struct {
	Position int          `json:"position"`
	Ref      vecmath.Vec3 `json:"ref"`
	RawMean  vecmath.Vec3 `json:"raw_mean"`
	CorrMean vecmath.Vec3 `json:"corr_mean"`
	ResRaw   vecmath.Vec3 `json:"res_raw"`
	ResCorr  vecmath.Vec3 `json:"res_corr"`
}

// Report is the JSON document written next to the corrected log.
type Report struct {
	Meta        ReportMeta        `json:"meta"`
	Coeffs      ReportCoeffs      `json:"coeffs"`
	Points      []Point           `json:"points"`
	Diagnostics ReportDiagnostics `json:"diagnostics"`
}

type ReportMeta struct {
	Gravity        float64    `json:"gravity"`
	L              int        `json:"L"`
	SteadyStart    float64    `json:"steady_start"`
	SteadyEnd      float64    `json:"steady_end"`
	SteadyStartIdx int        `json:"steady_start_idx"`
	SteadyEndIdx   int        `json:"steady_end_idx"`
	NPos           int        `json:"npos"`
	Positions      []Position `json:"positions"`
}

// ReportCoeffs holds M and C as row-major 3x3 arrays.
type ReportCoeffs struct {
	M [][]float64  `json:"M"`
	B vecmath.Vec3 `json:"b"`
	C [][]float64  `json:"C"`
}

type ReportDiagnostics struct {
	ParsedLines         int              `json:"parsed_lines"`
	Lines               *imulog.Counts   `json:"lines,omitempty"`
	Warnings            []imulog.Warning `json:"warnings,omitempty"`
	WarningsDropped     int              `json:"warnings_dropped"`
	MaxAbsMagRawAll     float64          `json:"max_abs_mag_raw_all"`
	MaxAbsMagRawSteady  float64          `json:"max_abs_mag_raw_steady"`
	MaxAbsMagCorrSteady float64          `json:"max_abs_mag_corr_steady"`
	MagCorrStats        stats.Stats      `json:"mag_corr_stats"`
	NormalCond          *float64         `json:"normal_cond"`
	FitResiduals        []vecmath.Vec3   `json:"fit_residuals"`
}

// Report builds the JSON document for res.
func (res *Result) Report() Report {
	rep := Report{
		Meta: ReportMeta{
			Gravity:        res.Gravity,
			L:              res.L,
			SteadyStart:    res.SteadyStartFrac,
			SteadyEnd:      res.SteadyEndFrac,
			SteadyStartIdx: res.SteadyStart,
			SteadyEndIdx:   res.SteadyEnd,
			NPos:           res.NPos,
			Positions:      res.Positions[:],
		},
		Coeffs: ReportCoeffs{
			M: res.Model.M.Rows(),
			B: res.Model.B,
			C: res.Correction.C.Rows(),
		},
		Points: res.Points[:],
		Diagnostics: ReportDiagnostics{
			ParsedLines:         res.ParsedLines,
			Warnings:            res.Warnings,
			WarningsDropped:     res.WarningsDropped,
			MaxAbsMagRawAll:     res.MaxAbsMagRawAll,
			MaxAbsMagRawSteady:  res.MaxAbsMagRawSteady,
			MaxAbsMagCorrSteady: res.MaxAbsMagCorrSteady,
			MagCorrStats:        res.MagCorrStats,
			FitResiduals:        res.FitResiduals[:],
		},
	}
	if res.Lines != nil {
		lines := *res.Lines
		rep.Diagnostics.Lines = &lines
	}
	if !math.IsInf(res.NormalCond, 0) && !math.IsNaN(res.NormalCond) {
		cond := res.NormalCond
		rep.Diagnostics.NormalCond = &cond
	}
	return rep
}

// Correction rebuilds the correction operator stored in a report.
func (rep Report) Correction() (Correction, error) {
	c, err := mat3FromRows(rep.Coeffs.C)
	if err != nil {
		return Correction{}, fmt.Errorf("coeffs.C: %w", err)
	}
	return Correction{C: c, D: rep.Coeffs.B}, nil
}

func mat3FromRows(rows [][]float64) (vecmath.Mat3, error) {
	var m vecmath.Mat3
	if len(rows) != 3 {
		return m, fmt.Errorf("expected 3 rows, got %d", len(rows))
	}
	for r, row := range rows {
		if len(row) != 3 {
			return m, fmt.Errorf("row %d has %d columns", r, len(row))
		}
		copy(m.A[r][:], row)
	}
	return m, nil
}

// WriteReport stores rep as indented JSON.
func WriteReport(path string, rep Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (Report, error) {
	var rep Report
	data, err := os.ReadFile(path)
	if err != nil {
		return rep, fmt.Errorf("read report %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		return rep, fmt.Errorf("parse report %s: %w", path, err)
	}
	return rep, nil
}

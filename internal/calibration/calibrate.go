// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calibration fits an affine accelerometer model from an 8-position static
// procedure and applies its inverse to the recorded data.
//
// Run streams the data log three times: pass 1 counts rows and derives the block
// geometry, pass 2 averages the steady window of every block, and after the 12
// parameter least-squares fit pass 3 writes the corrected log.
package calibration

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/stats"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

const (
	DefaultGravity         = 9.81054
	DefaultSteadyStartFrac = 0.3
	DefaultSteadyEndFrac   = 0.7
)

// State is a step of a calibration run.
type State int

const (
	StateLoadPositions State = iota
	StatePass1Count
	StateDeriveWindow
	StatePass2Aggregate
	StateFit
	StateValidateInvert
	StatePass3Apply
	StateWriteReport
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateLoadPositions:  "load_positions",
	StatePass1Count:     "pass1_count",
	StateDeriveWindow:   "derive_window",
	StatePass2Aggregate: "pass2_aggregate",
	StateFit:            "fit",
	StateValidateInvert: "validate_invert",
	StatePass3Apply:     "pass3_apply",
	StateWriteReport:    "write_report",
	StateDone:           "done",
	StateFailed:         "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Observer is told about every state a run enters. err is set only for StateFailed.
type Observer func(s State, err error)

// Options configures one run. Zero values for Gravity and the window fractions select
// the defaults.
type Options struct {
	InputPath string
	// Source overrides InputPath as the data log.
	Source imulog.Source

	PositionPath string
	// Positions overrides PositionPath.
	Positions *Positions

	// OutputPath defaults to imulog.CalibPath(InputPath).
	OutputPath string
	// ReportPath defaults to imulog.ReportPath(OutputPath). "-" disables the report.
	ReportPath string

	Gravity         float64
	SteadyStartFrac float64
	SteadyEndFrac   float64

	Observer Observer
	Logger   *log.Logger
}

// Result is everything a successful run produced.
type Result struct {
	Gravity         float64
	SteadyStartFrac float64
	SteadyEndFrac   float64

	ParsedLines int
	NPos        int
	L           int
	SteadyStart int
	SteadyEnd   int

	Positions  Positions
	Model      SensorModel
	Correction Correction

	MaxAbsMagRawAll     float64
	MaxAbsMagRawSteady  float64
	MaxAbsMagCorrSteady float64
	MagCorrStats        stats.Stats

	Points       [NumPositions]Point
	FitResiduals [NumPositions]vecmath.Vec3
	NormalCond   float64

	Lines           *imulog.Counts
	Warnings        []imulog.Warning
	WarningsDropped int

	OutputPath string
	ReportPath string
}

// run threads the aggregates of one calibration through its states.
type run struct {
	opts  Options
	src   imulog.Source
	log   *log.Logger
	state State

	res   Result
	geo   Geometry
	truth [NumPositions]vecmath.Vec3
	means [NumPositions]vecmath.Vec3
}

// Run executes a full calibration. On failure the returned error is an *Error and no
// result is produced.
func Run(opts Options) (*Result, error) {
	r, err := newRun(opts)
	if err != nil {
		return nil, err
	}
	return r.exec()
}

func newRun(opts Options) (*run, error) {
	if opts.Gravity == 0 {
		opts.Gravity = DefaultGravity
	}
	if opts.SteadyStartFrac == 0 && opts.SteadyEndFrac == 0 {
		opts.SteadyStartFrac = DefaultSteadyStartFrac
		opts.SteadyEndFrac = DefaultSteadyEndFrac
	}
	if !(opts.Gravity > 0) || math.IsInf(opts.Gravity, 0) {
		return nil, errorf(KindData, "options", "gravity must be positive and finite, got %g", opts.Gravity)
	}

	src := opts.Source
	if src == nil {
		if opts.InputPath == "" {
			return nil, errorf(KindIO, "options", "no input data log")
		}
		src = imulog.FileSource{Path: opts.InputPath}
	}
	if opts.OutputPath == "" {
		if opts.InputPath == "" {
			return nil, errorf(KindIO, "options", "no output path")
		}
		opts.OutputPath = imulog.CalibPath(opts.InputPath)
	}
	if opts.ReportPath == "" {
		opts.ReportPath = imulog.ReportPath(opts.OutputPath)
	}
	if opts.ReportPath != "-" && filepath.Clean(opts.ReportPath) == filepath.Clean(opts.OutputPath) {
		return nil, errorf(KindIO, "options", "report path %s is the corrected output", opts.ReportPath)
	}
	if opts.Positions == nil && opts.PositionPath == "" {
		if opts.InputPath == "" {
			return nil, errorf(KindIO, "options", "no position table")
		}
		opts.PositionPath = imulog.PositionPath(opts.InputPath)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &run{
		opts: opts,
		src:  src,
		log:  logger,
		res: Result{
			Gravity:         opts.Gravity,
			SteadyStartFrac: opts.SteadyStartFrac,
			SteadyEndFrac:   opts.SteadyEndFrac,
			NPos:            NumPositions,
			OutputPath:      opts.OutputPath,
		},
	}, nil
}

func (r *run) exec() (*Result, error) {
	steps := []struct {
		state State
		fn    func() error
	}{
		{StateLoadPositions, r.loadPositions},
		{StatePass1Count, r.pass1},
		{StateDeriveWindow, r.deriveWindow},
		{StatePass2Aggregate, r.pass2},
		{StateFit, r.fit},
		{StateValidateInvert, r.validateInvert},
		{StatePass3Apply, r.pass3},
		{StateWriteReport, r.writeReport},
	}

	for _, step := range steps {
		r.enter(step.state, nil)
		if err := step.fn(); err != nil {
			r.log.Printf("calibration: %s failed: %v", step.state, err)
			if step.state >= StatePass3Apply {
				os.Remove(r.opts.OutputPath)
			}
			r.enter(StateFailed, err)
			return nil, err
		}
	}

	r.enter(StateDone, nil)
	res := r.res
	return &res, nil
}

func (r *run) enter(s State, err error) {
	r.state = s
	if r.opts.Observer != nil {
		r.opts.Observer(s, err)
	}
}

func (r *run) loadPositions() error {
	if r.opts.Positions != nil {
		r.res.Positions = *r.opts.Positions
		return nil
	}
	table, err := LoadPositions(r.opts.PositionPath)
	if err != nil {
		return err
	}
	r.res.Positions = table
	return nil
}

func (r *run) pass1() error {
	sum, err := countRows(r.src, r.opts.Gravity)
	if err != nil {
		return err
	}
	r.res.ParsedLines = sum.rows
	r.res.MaxAbsMagRawAll = sum.maxAbsDev
	if sum.hasCounts {
		counts := sum.counts
		r.res.Lines = &counts
		r.res.Warnings = sum.warnings
		r.res.WarningsDropped = sum.dropped
		if counts.BadLines > 0 {
			r.log.Printf("calibration: skipped %d bad lines (%d warnings dropped)", counts.BadLines, sum.dropped)
		}
	}
	r.log.Printf("calibration: pass 1 parsed %d rows, max |mag-g| %.6f", sum.rows, sum.maxAbsDev)
	return nil
}

func (r *run) deriveWindow() error {
	geo, err := deriveWindow(r.res.ParsedLines, r.res.NPos, r.opts.SteadyStartFrac, r.opts.SteadyEndFrac)
	if err != nil {
		return err
	}
	r.geo = geo
	r.res.L = geo.L
	r.res.SteadyStart = geo.SteadyStart
	r.res.SteadyEnd = geo.SteadyEnd
	r.log.Printf("calibration: L=%d steady window [%d, %d)", geo.L, geo.SteadyStart, geo.SteadyEnd)
	return nil
}

func (r *run) pass2() error {
	if r.geo.L <= 0 {
		return errorf(KindData, "pass 2", "block geometry not derived")
	}
	means, counts, err := aggregateSteady(r.src, r.geo)
	if err != nil {
		return err
	}
	r.means = means
	for i := range means {
		r.log.Printf("calibration: block %d: %d steady samples, mean (%.6f, %.6f, %.6f)",
			i+1, counts[i], means[i].X, means[i].Y, means[i].Z)
	}
	return nil
}

func (r *run) fit() error {
	r.truth = referenceVectors(r.opts.Gravity, r.res.Positions)

	sys := buildSystem(r.truth, r.means)
	ata, aty := normalEquations(sys)
	x, err := solveGauss12(ata, aty)
	if err != nil {
		return &Error{Kind: KindNumeric, Op: "fit", Err: err}
	}

	m, b := unpackParams(x)
	r.res.Model = SensorModel{M: m, B: b}
	r.res.NormalCond = conditionNumber(ata)
	r.res.FitResiduals = fitResiduals(m, b, r.truth, r.means)
	for i, e := range r.res.FitResiduals {
		r.log.Printf("calibration: fit position %d err=(%.6f, %.6f, %.6f)", i+1, e.X, e.Y, e.Z)
	}
	return nil
}

func (r *run) validateInvert() error {
	corr, err := NewCorrection(r.res.Model)
	if err != nil {
		return &Error{Kind: KindNumeric, Op: "invert M", Err: err}
	}
	r.res.Correction = corr

	for i := range r.res.Points {
		ref := r.truth[i]
		raw := r.means[i]
		fixed := corr.Apply(raw)
		r.res.Points[i] = Point{
			Position: i + 1,
			Ref:      ref,
			RawMean:  raw,
			CorrMean: fixed,
			ResRaw:   raw.Sub(ref),
			ResCorr:  fixed.Sub(ref),
		}
	}
	return nil
}

// pass3 owns the output file and closes it on every path. exec removes it if this or
// a later step fails.
func (r *run) pass3() (err error) {
	const op = "pass 3"
	w, err := imulog.Create(r.opts.OutputPath)
	if err != nil {
		return &Error{Kind: KindIO, Op: op, Err: err}
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = &Error{Kind: KindIO, Op: op, Err: cerr}
		}
	}()

	if err := w.WriteHeader(); err != nil {
		return &Error{Kind: KindIO, Op: op, Err: err}
	}
	sum, err := applyCorrection(r.src, w, r.res.Correction, r.geo, r.opts.Gravity)
	if err != nil {
		return err
	}
	if sum.rows != r.res.ParsedLines {
		return errorf(KindData, op, "input changed between passes: %d rows, expected %d", sum.rows, r.res.ParsedLines)
	}

	r.res.MagCorrStats = sum.magCorr.Summary()
	r.res.MaxAbsMagRawSteady = sum.maxRawDev
	r.res.MaxAbsMagCorrSteady = sum.maxCorrDev
	r.log.Printf("calibration: wrote %d rows to %s, steady |mag-g| raw %.6f corrected %.6f",
		sum.rows, r.opts.OutputPath, sum.maxRawDev, sum.maxCorrDev)
	return nil
}

func (r *run) writeReport() error {
	if r.opts.ReportPath == "-" {
		return nil
	}
	if err := WriteReport(r.opts.ReportPath, r.res.Report()); err != nil {
		return &Error{Kind: KindIO, Op: "report", Err: err}
	}
	r.res.ReportPath = r.opts.ReportPath
	return nil
}

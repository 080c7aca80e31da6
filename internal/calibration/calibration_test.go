package calibration

import (
	"bytes"
	"errors"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

var (
	rigPositions = Positions{
		{0, 0}, {0, 45}, {0, 90}, {90, 90}, {180, 90}, {270, 90}, {90, 45}, {0, 180},
	}

	// every inner angle is zero, so no position has a z component
	planarPositions = Positions{
		{0, 0}, {0, 45}, {0, 90}, {0, 135}, {0, 180}, {0, 225}, {0, 270}, {0, 315},
	}

	knownModel = SensorModel{
		M: vecmath.Mat3{A: [3][3]float64{
			{1.02, 0.01, -0.005},
			{0.003, 0.98, 0.02},
			{-0.01, 0.004, 1.01},
		}},
		B: vecmath.Vec3{X: 0.05, Y: -0.03, Z: 0.08},
	}

	identityModel = SensorModel{M: vecmath.Identity()}
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// synthRows generates blocks of L rows per position measured through model. With
// transient set, rows outside the default steady window are disturbed.
func synthRows(model SensorModel, table Positions, g float64, L int, transient bool) imulog.SliceSource {
	start := int(DefaultSteadyStartFrac * float64(L))
	end := int(DefaultSteadyEndFrac * float64(L))

	rows := make(imulog.SliceSource, 0, NumPositions*L)
	for i, p := range table {
		meas := model.M.MulVec(TrueGravity(g, p.Inner, p.Outer)).Add(model.B)
		for off := 0; off < L; off++ {
			v := meas
			if transient && (off < start || off >= end) {
				v.X += 0.7
				v.Z -= 0.4
			}
			idx := i*L + off
			rows = append(rows, imulog.Row{T: float64(idx) * 10, Ax: v.X, Ay: v.Y, Az: v.Z})
		}
	}
	return rows
}

func assertMat3(t *testing.T, name string, got, want vecmath.Mat3, tol float64) {
	t.Helper()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			if d := math.Abs(got.A[r][c] - want.A[r][c]); d > tol {
				t.Errorf("%s[%d][%d] = %.15g, want %.15g", name, r, c, got.A[r][c], want.A[r][c])
			}
		}
	}
}

func assertVec3(t *testing.T, name string, got, want vecmath.Vec3, tol float64) {
	t.Helper()
	if got.Sub(want).Norm() > tol {
		t.Errorf("%s = %+v, want %+v", name, got, want)
	}
}

func TestTrueGravityMagnitude(t *testing.T) {
	for _, g := range []float64{1, DefaultGravity, 9.7803253359} {
		for inner := -360; inner <= 360; inner += 15 {
			for outer := -360; outer <= 360; outer += 15 {
				v := TrueGravity(g, inner, outer)
				if d := math.Abs(v.Norm() - g); d > 1e-12*g {
					t.Fatalf("|TrueGravity(%g, %d, %d)| = %.15g", g, inner, outer, v.Norm())
				}
			}
		}
	}
}

func TestTrueGravityAxes(t *testing.T) {
	g := 9.8
	tests := []struct {
		inner, outer int
		want         vecmath.Vec3
	}{
		{0, 0, vecmath.Vec3{X: g}},
		{0, 90, vecmath.Vec3{Y: -g}},
		{90, 90, vecmath.Vec3{Z: g}},
		{180, 90, vecmath.Vec3{Y: g}},
		{0, 180, vecmath.Vec3{X: -g}},
	}
	for _, tc := range tests {
		assertVec3(t, "gravity", TrueGravity(g, tc.inner, tc.outer), tc.want, 1e-12)
	}
}

func solveFor(t *testing.T, truth, means [NumPositions]vecmath.Vec3) (vecmath.Mat3, vecmath.Vec3) {
	t.Helper()
	ata, aty := normalEquations(buildSystem(truth, means))
	x, err := solveGauss12(ata, aty)
	if err != nil {
		t.Fatalf("solveGauss12: %v", err)
	}
	return unpackParams(x)
}

func TestFitIdentity(t *testing.T) {
	truth := referenceVectors(DefaultGravity, rigPositions)
	m, b := solveFor(t, truth, truth)

	assertMat3(t, "M", m, vecmath.Identity(), 1e-12)
	assertVec3(t, "b", b, vecmath.Vec3{}, 1e-12)

	corr, err := NewCorrection(SensorModel{M: m, B: b})
	if err != nil {
		t.Fatalf("NewCorrection: %v", err)
	}
	assertMat3(t, "C", corr.C, vecmath.Identity(), 1e-12)
}

func TestFitRecoversKnownModel(t *testing.T) {
	truth := referenceVectors(DefaultGravity, rigPositions)
	var means [NumPositions]vecmath.Vec3
	for i := range truth {
		means[i] = knownModel.M.MulVec(truth[i]).Add(knownModel.B)
	}

	m, b := solveFor(t, truth, means)
	assertMat3(t, "M", m, knownModel.M, 1e-9)
	assertVec3(t, "b", b, knownModel.B, 1e-9)

	corr, err := NewCorrection(SensorModel{M: m, B: b})
	if err != nil {
		t.Fatalf("NewCorrection: %v", err)
	}
	want, _ := vecmath.Invert(knownModel.M)
	assertMat3(t, "C", corr.C, want, 1e-9)

	for i, e := range fitResiduals(m, b, truth, means) {
		if e.Norm() > 1e-9 {
			t.Errorf("fit residual %d = %+v", i, e)
		}
	}
}

// The normal-equation solution must agree with gonum's QR least squares on the
// stacked system when the data is noisy.
func TestFitMatchesGonumLeastSquares(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	truth := referenceVectors(DefaultGravity, rigPositions)
	var means [NumPositions]vecmath.Vec3
	for i := range truth {
		v := knownModel.M.MulVec(truth[i]).Add(knownModel.B)
		means[i] = v.Add(vecmath.Vec3{X: rng.NormFloat64() * 0.01, Y: rng.NormFloat64() * 0.01, Z: rng.NormFloat64() * 0.01})
	}

	sys := buildSystem(truth, means)
	ata, aty := normalEquations(sys)
	x, err := solveGauss12(ata, aty)
	if err != nil {
		t.Fatalf("solveGauss12: %v", err)
	}

	a := mat.NewDense(numRows, numParams, nil)
	y := mat.NewVecDense(numRows, sys.Y[:])
	for r := 0; r < numRows; r++ {
		for c := 0; c < numParams; c++ {
			a.Set(r, c, sys.A[r][c])
		}
	}
	var want mat.VecDense
	if err := want.SolveVec(a, y); err != nil {
		t.Fatalf("gonum SolveVec: %v", err)
	}
	for i := 0; i < numParams; i++ {
		if d := math.Abs(x[i] - want.AtVec(i)); d > 1e-9 {
			t.Errorf("x[%d] = %.12g, gonum %.12g", i, x[i], want.AtVec(i))
		}
	}

	if c := conditionNumber(ata); math.IsInf(c, 0) || c < 1 {
		t.Errorf("condition number = %g", c)
	}
}

func TestNormalEquationsSymmetric(t *testing.T) {
	truth := referenceVectors(DefaultGravity, rigPositions)
	ata, _ := normalEquations(buildSystem(truth, truth))
	for i := 0; i < numParams; i++ {
		for j := 0; j < numParams; j++ {
			if ata[i][j] != ata[j][i] {
				t.Fatalf("ata[%d][%d] = %g, ata[%d][%d] = %g", i, j, ata[i][j], j, i, ata[j][i])
			}
		}
	}
	// bias columns see every position once per axis
	if ata[9][9] != NumPositions || ata[10][10] != NumPositions || ata[11][11] != NumPositions {
		t.Errorf("bias diagonal = %g %g %g", ata[9][9], ata[10][10], ata[11][11])
	}
}

func TestSolveSingularSystem(t *testing.T) {
	var same Positions
	for i := range same {
		same[i] = Position{Inner: 0, Outer: 0}
	}
	for name, table := range map[string]Positions{"planar": planarPositions, "identical": same} {
		truth := referenceVectors(DefaultGravity, table)
		ata, aty := normalEquations(buildSystem(truth, truth))
		if _, err := solveGauss12(ata, aty); !errors.Is(err, ErrSingularSystem) {
			t.Errorf("%s: expected ErrSingularSystem, got %v", name, err)
		}
	}
}

func TestDeriveWindow(t *testing.T) {
	tests := []struct {
		name       string
		rows       int
		start, end float64
		want       Geometry
		fail       bool
	}{
		{name: "8000 rows", rows: 8000, start: 0.3, end: 0.7, want: Geometry{NPos: 8, L: 1000, SteadyStart: 300, SteadyEnd: 700}},
		{name: "trailing rows", rows: 8007, start: 0.3, end: 0.7, want: Geometry{NPos: 8, L: 1000, SteadyStart: 300, SteadyEnd: 700}},
		{name: "whole block", rows: 80, start: 0, end: 1, want: Geometry{NPos: 8, L: 10, SteadyStart: 0, SteadyEnd: 10}},
		{name: "too few rows", rows: 7, start: 0.3, end: 0.7, fail: true},
		{name: "empty window", rows: 8, start: 0.3, end: 0.7, fail: true},
		{name: "reversed", rows: 800, start: 0.7, end: 0.3, fail: true},
		{name: "end past block", rows: 800, start: 0.3, end: 1.2, fail: true},
		{name: "negative start", rows: 800, start: -0.5, end: 0.5, fail: true},
		{name: "nan", rows: 800, start: math.NaN(), end: 0.5, fail: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			geo, err := deriveWindow(tc.rows, NumPositions, tc.start, tc.end)
			if tc.fail {
				if !errors.Is(err, ErrData) {
					t.Fatalf("expected data error, got %v (%+v)", err, geo)
				}
				return
			}
			if err != nil {
				t.Fatalf("deriveWindow: %v", err)
			}
			if geo != tc.want {
				t.Errorf("geometry = %+v, want %+v", geo, tc.want)
			}
		})
	}
}

func TestAggregateSteady(t *testing.T) {
	rows := synthRows(knownModel, rigPositions, DefaultGravity, 100, true)
	geo := Geometry{NPos: 8, L: 100, SteadyStart: 30, SteadyEnd: 70}

	means, counts, err := aggregateSteady(rows, geo)
	if err != nil {
		t.Fatalf("aggregateSteady: %v", err)
	}
	for i, p := range rigPositions {
		if counts[i] != 40 {
			t.Errorf("block %d count = %d", i, counts[i])
		}
		want := knownModel.M.MulVec(TrueGravity(DefaultGravity, p.Inner, p.Outer)).Add(knownModel.B)
		assertVec3(t, "mean", means[i], want, 1e-12)
	}
}

func TestAggregateEmptyBlock(t *testing.T) {
	rows := synthRows(identityModel, rigPositions, DefaultGravity, 10, false)[:65]
	geo := Geometry{NPos: 8, L: 10, SteadyStart: 0, SteadyEnd: 5}
	if _, _, err := aggregateSteady(rows, geo); !errors.Is(err, ErrData) {
		t.Fatalf("expected data error, got %v", err)
	}
}

func writePositionFile(t *testing.T, dir string, table Positions) string {
	t.Helper()
	var buf bytes.Buffer
	if err := WritePositions(&buf, table); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, imulog.DefaultPositionFile)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeLog(t *testing.T, path string, rows imulog.SliceSource) {
	t.Helper()
	w, err := imulog.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteHeader(); err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if err := w.WriteRow(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func readLog(t *testing.T, path string) []imulog.Row {
	t.Helper()
	var rows []imulog.Row
	err := imulog.ForEach(imulog.FileSource{Path: path}, func(r imulog.Row) error {
		rows = append(rows, r)
		return nil
	})
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	writePositionFile(t, dir, rigPositions)
	input := filepath.Join(dir, "run.csv")
	rows := synthRows(knownModel, rigPositions, DefaultGravity, 1000, true)
	writeLog(t, input, rows)

	var states []State
	res, err := Run(Options{
		InputPath: input,
		Observer:  func(s State, _ error) { states = append(states, s) },
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.ParsedLines != 8000 || res.L != 1000 || res.SteadyStart != 300 || res.SteadyEnd != 700 {
		t.Fatalf("geometry: parsed=%d L=%d window=[%d,%d)", res.ParsedLines, res.L, res.SteadyStart, res.SteadyEnd)
	}
	assertMat3(t, "M", res.Model.M, knownModel.M, 1e-9)
	assertVec3(t, "b", res.Model.B, knownModel.B, 1e-9)
	if math.Abs(res.Model.M.Det()) < 1e-12 {
		t.Errorf("fitted M is singular")
	}

	if res.MaxAbsMagCorrSteady >= res.MaxAbsMagRawSteady {
		t.Errorf("corrected residual %g not below raw %g", res.MaxAbsMagCorrSteady, res.MaxAbsMagRawSteady)
	}
	if res.MaxAbsMagCorrSteady > 1e-9 {
		t.Errorf("corrected residual = %g", res.MaxAbsMagCorrSteady)
	}
	if res.MagCorrStats.Count != 8*400 {
		t.Errorf("steady samples = %d", res.MagCorrStats.Count)
	}
	if res.MaxAbsMagRawAll < res.MaxAbsMagRawSteady {
		t.Errorf("all-rows residual %g below steady %g", res.MaxAbsMagRawAll, res.MaxAbsMagRawSteady)
	}

	wantStates := []State{
		StateLoadPositions, StatePass1Count, StateDeriveWindow, StatePass2Aggregate,
		StateFit, StateValidateInvert, StatePass3Apply, StateWriteReport, StateDone,
	}
	if len(states) != len(wantStates) {
		t.Fatalf("states = %v", states)
	}
	for i := range wantStates {
		if states[i] != wantStates[i] {
			t.Errorf("state %d = %s, want %s", i, states[i], wantStates[i])
		}
	}

	if res.OutputPath != filepath.Join(dir, "run_calib.csv") {
		t.Errorf("output path = %s", res.OutputPath)
	}
	out := readLog(t, res.OutputPath)
	if len(out) != 8000 {
		t.Fatalf("corrected rows = %d", len(out))
	}
	for i := range out {
		if out[i].T != rows[i].T {
			t.Fatalf("row %d timestamp %g, want %g", i, out[i].T, rows[i].T)
		}
	}

	rep, err := ReadReport(res.ReportPath)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if rep.Meta.L != 1000 || rep.Meta.NPos != 8 || len(rep.Points) != 8 || rep.Points[0].Position != 1 {
		t.Errorf("report = %+v", rep.Meta)
	}
	if rep.Diagnostics.NormalCond == nil || rep.Diagnostics.Lines == nil || rep.Diagnostics.Lines.HeaderLines != 1 {
		t.Errorf("diagnostics = %+v", rep.Diagnostics)
	}
	for _, p := range rep.Points {
		if p.ResCorr.Norm() > 1e-9 || p.ResRaw.Norm() < 1e-3 {
			t.Errorf("point %d residuals raw %+v corrected %+v", p.Position, p.ResRaw, p.ResCorr)
		}
	}
	corr, err := rep.Correction()
	if err != nil {
		t.Fatalf("report correction: %v", err)
	}
	assertMat3(t, "report C", corr.C, res.Correction.C, 0)
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	rows := synthRows(knownModel, rigPositions, DefaultGravity, 200, true)
	table := rigPositions

	run := func(name string) (*Result, []byte) {
		out := filepath.Join(dir, name+".csv")
		res, err := Run(Options{Source: rows, Positions: &table, OutputPath: out, Logger: quietLogger()})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		return res, data
	}

	r1, out1 := run("first")
	r2, out2 := run("second")
	if r1.Model != r2.Model || r1.Correction != r2.Correction {
		t.Errorf("coefficients differ between runs")
	}
	if !bytes.Equal(out1, out2) {
		t.Errorf("corrected output differs between runs")
	}
}

func TestRunIgnoresTrailingPartialBlock(t *testing.T) {
	rows := synthRows(knownModel, rigPositions, DefaultGravity, 100, false)
	rows = append(rows, imulog.Row{T: 1e6, Ax: 50, Ay: 50, Az: 50}, imulog.Row{T: 1e6 + 10, Ax: -50})
	table := rigPositions
	out := filepath.Join(t.TempDir(), "tail.csv")

	res, err := Run(Options{Source: rows, Positions: &table, OutputPath: out, ReportPath: "-", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertMat3(t, "M", res.Model.M, knownModel.M, 1e-9)
	if got := len(readLog(t, out)); got != len(rows) {
		t.Errorf("corrected rows = %d, want %d", got, len(rows))
	}
	if res.ReportPath != "" {
		t.Errorf("report written to %s", res.ReportPath)
	}
}

func TestRunDegenerateGeometry(t *testing.T) {
	rows := synthRows(identityModel, planarPositions, DefaultGravity, 100, false)
	table := planarPositions
	out := filepath.Join(t.TempDir(), "degenerate.csv")

	var last State
	var lastErr error
	res, err := Run(Options{
		Source:     rows,
		Positions:  &table,
		OutputPath: out,
		Observer:   func(s State, e error) { last, lastErr = s, e },
		Logger:     quietLogger(),
	})
	if res != nil {
		t.Fatalf("expected no result, got %+v", res.Model)
	}
	if !errors.Is(err, ErrNumeric) || KindOf(err) != KindNumeric {
		t.Fatalf("expected numeric error, got %v", err)
	}
	if !errors.Is(err, ErrSingularSystem) {
		t.Errorf("error does not wrap ErrSingularSystem: %v", err)
	}
	if last != StateFailed || lastErr != err {
		t.Errorf("observer last state = %s (%v)", last, lastErr)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Errorf("output file should not exist: %v", statErr)
	}
}

func TestRunFailures(t *testing.T) {
	dir := t.TempDir()
	table := rigPositions
	rows := synthRows(identityModel, rigPositions, DefaultGravity, 10, false)

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{
			name: "missing input",
			opts: Options{InputPath: filepath.Join(dir, "missing.csv"), Positions: &table},
			want: ErrIO,
		},
		{
			name: "missing positions",
			opts: Options{Source: rows, PositionPath: filepath.Join(dir, "nope.txt"), OutputPath: filepath.Join(dir, "a.csv")},
			want: ErrIO,
		},
		{
			name: "too few rows",
			opts: Options{Source: rows[:7], Positions: &table, OutputPath: filepath.Join(dir, "b.csv")},
			want: ErrData,
		},
		{
			name: "output dir missing",
			opts: Options{Source: rows, Positions: &table, OutputPath: filepath.Join(dir, "no", "such", "c.csv")},
			want: ErrIO,
		},
		{
			name: "nan gravity",
			opts: Options{Source: rows, Positions: &table, OutputPath: filepath.Join(dir, "e.csv"), Gravity: math.NaN()},
			want: ErrData,
		},
		{
			name: "infinite gravity",
			opts: Options{Source: rows, Positions: &table, OutputPath: filepath.Join(dir, "f.csv"), Gravity: math.Inf(1)},
			want: ErrData,
		},
		{
			name: "report overwrites output",
			opts: Options{Source: rows, Positions: &table, OutputPath: filepath.Join(dir, "g.json")},
			want: ErrIO,
		},
		{
			name: "singular model",
			opts: Options{
				Source:     synthRows(SensorModel{M: vecmath.Mat3{A: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 0}}}}, rigPositions, DefaultGravity, 10, false),
				Positions:  &table,
				OutputPath: filepath.Join(dir, "d.csv"),
			},
			want: ErrNumeric,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.opts.Logger = quietLogger()
			res, err := Run(tc.opts)
			if res != nil || !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			var ce *Error
			if !errors.As(err, &ce) || ce.Op == "" {
				t.Errorf("error is not a staged *Error: %#v", err)
			}
		})
	}
}

func TestParsePositions(t *testing.T) {
	eight := "inner outer\n0 0\n0 45\n0 90\n90 90\n180 90\n270 90\n90 45\n0 180\n"
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "valid", in: eight},
		{name: "blank lines", in: "\n" + strings.ReplaceAll(eight, "\n", "\n\n")},
		{name: "seven", in: strings.TrimSuffix(eight, "0 180\n")},
		{name: "nine", in: eight + "1 1\n"},
		{name: "bad header", in: "angles\n" + strings.SplitN(eight, "\n", 2)[1]},
		{name: "not integer", in: strings.Replace(eight, "0 45", "0 4.5", 1)},
		{name: "three columns", in: strings.Replace(eight, "0 45", "0 45 1", 1)},
		{name: "empty", in: ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			table, err := ParsePositions(strings.NewReader(tc.in))
			if tc.name == "valid" || tc.name == "blank lines" {
				if err != nil {
					t.Fatalf("ParsePositions: %v", err)
				}
				if table != rigPositions {
					t.Errorf("table = %v", table)
				}
				return
			}
			if !errors.Is(err, ErrFormat) {
				t.Errorf("expected format error, got %v", err)
			}
		})
	}

	if _, err := LoadPositions(filepath.Join(t.TempDir(), "missing.txt")); !errors.Is(err, ErrIO) {
		t.Errorf("missing file: %v", err)
	}
}

// shrinkingSource drops its last row from the third Open on.
type shrinkingSource struct {
	rows  imulog.SliceSource
	opens int
}

func (s *shrinkingSource) Open() (imulog.Cursor, error) {
	s.opens++
	if s.opens >= 3 {
		return s.rows[:len(s.rows)-1].Open()
	}
	return s.rows.Open()
}

func TestRunRemovesOutputOnLateFailure(t *testing.T) {
	rows := synthRows(knownModel, rigPositions, DefaultGravity, 20, false)
	table := rigPositions

	tests := []struct {
		name   string
		src    imulog.Source
		report func(dir string) string
		kind   Kind
		state  State
	}{
		{
			name:   "input changed before pass 3",
			src:    &shrinkingSource{rows: rows},
			report: func(string) string { return "-" },
			kind:   KindData,
			state:  StatePass3Apply,
		},
		{
			name:   "report not writable",
			src:    rows,
			report: func(dir string) string { return filepath.Join(dir, "missing", "r.json") },
			kind:   KindIO,
			state:  StateWriteReport,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			out := filepath.Join(dir, "out.csv")

			var failedIn State
			var prev State
			res, err := Run(Options{
				Source:     tc.src,
				Positions:  &table,
				OutputPath: out,
				ReportPath: tc.report(dir),
				Logger:     quietLogger(),
				Observer: func(s State, _ error) {
					if s == StateFailed {
						failedIn = prev
					}
					prev = s
				},
			})
			if res != nil || KindOf(err) != tc.kind {
				t.Fatalf("got %v, want %s", err, tc.kind)
			}
			if failedIn != tc.state {
				t.Errorf("failed in %s, want %s", failedIn, tc.state)
			}
			if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
				t.Errorf("corrected output left behind: %v", statErr)
			}
			if strings.Contains(err.Error(), "write report: write report") {
				t.Errorf("repeated prefix in %q", err)
			}
		})
	}
}

func TestCorrectLog(t *testing.T) {
	rows := synthRows(knownModel, rigPositions, DefaultGravity, 5, false)
	corr, err := NewCorrection(knownModel)
	if err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "fixed.csv")
	n, err := CorrectLog(rows, corr, out)
	if err != nil || n != len(rows) {
		t.Fatalf("CorrectLog = %d, %v", n, err)
	}
	for _, r := range readLog(t, out) {
		if d := math.Abs(r.Accel().Norm() - DefaultGravity); d > 1e-9 {
			t.Fatalf("corrected magnitude off by %g", d)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := errorf(KindData, "pass 2", "block %d has no steady samples", 3)
	if got := err.Error(); got != "data error: pass 2: block 3 has no steady samples" {
		t.Errorf("Error() = %q", got)
	}
	if errors.Is(err, ErrIO) || !errors.Is(err, ErrData) {
		t.Errorf("Is mismatch for %v", err)
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Errorf("plain error has a kind")
	}
	if StateFailed.String() != "failed" || State(42).String() != "state(42)" {
		t.Errorf("state names: %s %s", StateFailed, State(42))
	}
}

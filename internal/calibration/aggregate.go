// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"io"
	"math"

	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

// Geometry splits a data log into NPos equal blocks of L rows with a steady window
// [SteadyStart, SteadyEnd) of offsets inside every block.
type Geometry struct {
	NPos        int
	L           int
	SteadyStart int
	SteadyEnd   int
}

// locate maps a row index to its block. ok is false for rows of the trailing partial
// block; steady reports whether the offset lies in the steady window.
func (g Geometry) locate(i int) (block int, steady, ok bool) {
	block = i / g.L
	if block >= g.NPos {
		return block, false, false
	}
	off := i % g.L
	return block, off >= g.SteadyStart && off < g.SteadyEnd, true
}

// logSummary is what pass 1 learns about the input.
type logSummary struct {
	rows      int
	maxAbsDev float64 // max |‖raw‖ - g| over every row
	counts    imulog.Counts
	warnings  []imulog.Warning
	dropped   int
	hasCounts bool
}

// lineCounter is implemented by cursors that classify input lines, like imulog.Reader.
type lineCounter interface {
	Counts() imulog.Counts
	Warnings() []imulog.Warning
	WarningsDropped() int
}

// countRows is pass 1.
func countRows(src imulog.Source, g float64) (logSummary, error) {
	const op = "pass 1"
	var s logSummary

	cur, err := src.Open()
	if err != nil {
		return s, &Error{Kind: KindIO, Op: op, Err: err}
	}
	defer cur.Close()

	for {
		row, err := cur.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s, &Error{Kind: KindIO, Op: op, Err: err}
		}
		s.rows++
		if d := math.Abs(row.Accel().Norm() - g); d > s.maxAbsDev {
			s.maxAbsDev = d
		}
	}

	if lc, ok := cur.(lineCounter); ok {
		s.counts = lc.Counts()
		s.warnings = lc.Warnings()
		s.dropped = lc.WarningsDropped()
		s.hasCounts = true
	}
	return s, nil
}

// deriveWindow computes the block geometry from the total row count.
func deriveWindow(rows, npos int, startFrac, endFrac float64) (Geometry, error) {
	const op = "derive window"
	if npos != NumPositions {
		return Geometry{}, errorf(KindData, op, "npos=%d, need %d", npos, NumPositions)
	}
	if math.IsNaN(startFrac) || math.IsNaN(endFrac) {
		return Geometry{}, errorf(KindData, op, "steady window fractions must be numbers")
	}

	L := rows / npos
	if L <= 0 {
		return Geometry{}, errorf(KindData, op, "%d rows is not enough for %d blocks", rows, npos)
	}

	geo := Geometry{
		NPos:        npos,
		L:           L,
		SteadyStart: int(startFrac * float64(L)),
		SteadyEnd:   int(endFrac * float64(L)),
	}
	if geo.SteadyStart < 0 || geo.SteadyStart >= geo.SteadyEnd || geo.SteadyEnd > L {
		return Geometry{}, errorf(KindData, op, "bad steady window [%d, %d) for L=%d", geo.SteadyStart, geo.SteadyEnd, L)
	}
	return geo, nil
}

// aggregateSteady is pass 2: the mean raw vector of every block's steady window.
func aggregateSteady(src imulog.Source, geo Geometry) ([NumPositions]vecmath.Vec3, [NumPositions]int, error) {
	const op = "pass 2"
	var (
		sums   [NumPositions]vecmath.Vec3
		counts [NumPositions]int
		means  [NumPositions]vecmath.Vec3
	)

	cur, err := src.Open()
	if err != nil {
		return means, counts, &Error{Kind: KindIO, Op: op, Err: err}
	}
	defer cur.Close()

	for i := 0; ; i++ {
		row, err := cur.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return means, counts, &Error{Kind: KindIO, Op: op, Err: err}
		}
		block, steady, ok := geo.locate(i)
		if !ok || !steady {
			continue
		}
		sums[block] = sums[block].Add(row.Accel())
		counts[block]++
	}

	for b := 0; b < geo.NPos; b++ {
		if counts[b] == 0 {
			return means, counts, errorf(KindData, op, "block %d has no steady samples", b+1)
		}
		n := float64(counts[b])
		means[b] = vecmath.Vec3{X: sums[b].X / n, Y: sums[b].Y / n, Z: sums[b].Z / n}
	}
	return means, counts, nil
}

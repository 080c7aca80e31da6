// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package imulog reads and writes accelerometer data logs: CSV text files with the
// columns t_ms, ax, ay, az. Rows are pulled one at a time so a log can be replayed
// several times without holding it in memory.
package imulog

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

// Header is the column header written to and recognised in data logs.
var Header = [4]string{"t_ms", "ax", "ay", "az"}

// MaxWarnings caps the warnings kept per pass; further ones are only counted.
const MaxWarnings = 100

// Row is one parsed sample.
type Row struct {
	T  float64 // milliseconds
	Ax float64
	Ay float64
	Az float64
}

// Accel returns the acceleration part of the row.
func (r Row) Accel() vecmath.Vec3 {
	return vecmath.Vec3{X: r.Ax, Y: r.Ay, Z: r.Az}
}

// Counts classifies every line seen by a Reader.
type Counts struct {
	TotalLines   int `json:"total_lines"`
	EmptyLines   int `json:"empty_lines"`
	CommentLines int `json:"comment_lines"`
	HeaderLines  int `json:"header_lines"`
	ParsedLines  int `json:"parsed_lines"`
	BadLines     int `json:"bad_lines"`
}

// Warning describes a skipped line. Column is 1-based.
type Warning struct {
	Line    int     `json:"line"`
	Message string  `json:"message"`
	Column  *int    `json:"column,omitempty"`
	Value   *string `json:"value,omitempty"`
}

// Reader pulls validated rows from a data log. Empty lines, '#' comments and the
// first header line are skipped; malformed lines are skipped and reported as warnings.
type Reader struct {
	sc     *bufio.Scanner
	closer io.Closer

	counts      Counts
	warnings    []Warning
	dropped     int
	headerFound bool
}

// NewReader wraps r. Close on the returned Reader is a no-op unless r is also an
// io.Closer handed over through Open.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Reader{sc: sc}
}

// Next returns the next valid row, or io.EOF once the log is exhausted.
func (r *Reader) Next() (Row, error) {
	for r.sc.Scan() {
		r.counts.TotalLines++
		line := strings.TrimSpace(r.sc.Text())

		if line == "" {
			r.counts.EmptyLines++
			continue
		}
		if strings.HasPrefix(line, "#") {
			r.counts.CommentLines++
			continue
		}

		tokens := splitComma(line)
		if len(tokens) != len(Header) {
			r.counts.BadLines++
			r.warn(Warning{
				Line:    r.counts.TotalLines,
				Message: fmt.Sprintf("incorrect number of columns (expected %d, got %d)", len(Header), len(tokens)),
			})
			continue
		}

		if !r.headerFound && isHeader(tokens) {
			r.headerFound = true
			r.counts.HeaderLines++
			continue
		}

		var vals [4]float64
		bad := -1
		for i, tok := range tokens {
			v, ok := ParseDecimal(tok)
			if !ok {
				bad = i
				break
			}
			vals[i] = v
		}
		if bad >= 0 {
			r.counts.BadLines++
			col := bad + 1
			val := tokens[bad]
			r.warn(Warning{
				Line:    r.counts.TotalLines,
				Message: "invalid value",
				Column:  &col,
				Value:   &val,
			})
			continue
		}

		r.counts.ParsedLines++
		return Row{T: vals[0], Ax: vals[1], Ay: vals[2], Az: vals[3]}, nil
	}

	if err := r.sc.Err(); err != nil {
		return Row{}, fmt.Errorf("read data log line %d: %w", r.counts.TotalLines+1, err)
	}
	return Row{}, io.EOF
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

func (r *Reader) Counts() Counts { return r.counts }

// Warnings returns at most MaxWarnings entries; see WarningsDropped for the rest.
func (r *Reader) Warnings() []Warning { return r.warnings }

func (r *Reader) WarningsDropped() int { return r.dropped }

func (r *Reader) HeaderFound() bool { return r.headerFound }

func (r *Reader) warn(w Warning) {
	if len(r.warnings) >= MaxWarnings {
		r.dropped++
		return
	}
	r.warnings = append(r.warnings, w)
}

func splitComma(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func isHeader(tokens []string) bool {
	for i, h := range Header {
		if tokens[i] != h {
			return false
		}
	}
	return true
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

// NumPositions is fixed by the 3-axis, 8-position static procedure.
const NumPositions = 8

// Position is the rig orientation of one static block, in whole degrees.
type Position struct {
	Inner int `json:"inner"`
	Outer int `json:"outer"`
}

// Positions is the ordered table of block orientations.
type Positions [NumPositions]Position

// LoadPositions reads a position file: a two-token header line followed by exactly
// NumPositions lines of "inner outer" integer pairs. Blank lines are ignored.
func LoadPositions(path string) (Positions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Positions{}, &Error{Kind: KindIO, Op: "load positions", Err: err}
	}
	defer f.Close()
	return ParsePositions(f)
}

// ParsePositions parses the position file format from r.
func ParsePositions(r io.Reader) (Positions, error) {
	const op = "load positions"
	var out Positions

	sc := bufio.NewScanner(r)
	lineNo := 0
	header := false
	n := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if !header {
			if len(fields) != 2 {
				return out, errorf(KindFormat, op, "line %d: header must have 2 columns, got %d", lineNo, len(fields))
			}
			header = true
			continue
		}

		if len(fields) != 2 {
			return out, errorf(KindFormat, op, "line %d: expected \"inner outer\", got %d columns", lineNo, len(fields))
		}
		inner, err := strconv.Atoi(fields[0])
		if err != nil {
			return out, errorf(KindFormat, op, "line %d: inner angle %q is not an integer", lineNo, fields[0])
		}
		outer, err := strconv.Atoi(fields[1])
		if err != nil {
			return out, errorf(KindFormat, op, "line %d: outer angle %q is not an integer", lineNo, fields[1])
		}
		if n == NumPositions {
			return out, errorf(KindFormat, op, "more than %d positions", NumPositions)
		}
		out[n] = Position{Inner: inner, Outer: outer}
		n++
	}
	if err := sc.Err(); err != nil {
		return out, &Error{Kind: KindIO, Op: op, Err: err}
	}

	if !header {
		return out, errorf(KindFormat, op, "missing header line")
	}
	if n != NumPositions {
		return out, errorf(KindFormat, op, "expected %d positions, got %d", NumPositions, n)
	}
	return out, nil
}

// WritePositions writes table in the format read by ParsePositions.
func WritePositions(w io.Writer, table Positions) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("inner outer\n")
	for _, p := range table {
		bw.WriteString(strconv.Itoa(p.Inner) + " " + strconv.Itoa(p.Outer) + "\n")
	}
	return bw.Flush()
}

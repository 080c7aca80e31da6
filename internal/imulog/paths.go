// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imulog

import (
	"path/filepath"
	"strings"
)

// DefaultPositionFile is looked up next to the input log when no position file is given.
const DefaultPositionFile = "POSITION.txt"

// CalibPath maps data/run.csv to data/run_calib.csv.
func CalibPath(input string) string { return withSuffix(input, "_calib") }

// CleanPath maps data/run.csv to data/run_clean.csv.
func CleanPath(input string) string { return withSuffix(input, "_clean") }

// ReportPath replaces the extension of a data log with .json.
func ReportPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".json"
}

// PositionPath returns POSITION.txt in the directory of input.
func PositionPath(input string) string {
	return filepath.Join(filepath.Dir(input), DefaultPositionFile)
}

func withSuffix(p, suffix string) string {
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + suffix + ext
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package analysis summarises a data log: line counts, per-axis statistics and the
// regularity of its time axis. It can also write a cleaned copy without bad lines.
package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/stats"
)

// Statistics per axis and of the acceleration magnitude.
type Statistics struct {
	Ax  stats.Stats `json:"ax"`
	Ay  stats.Stats `json:"ay"`
	Az  stats.Stats `json:"az"`
	Mag stats.Stats `json:"mag"`
}

// Report is the JSON document written next to the analysed log.
type Report struct {
	Input           string               `json:"input"`
	Counts          imulog.Counts        `json:"counts"`
	Warnings        []imulog.Warning     `json:"warnings"`
	WarningsDropped int                  `json:"warnings_dropped"`
	TimeAxis        stats.TimeAxisReport `json:"time_axis"`
	Statistics      Statistics           `json:"statistics"`
	CleanPath       string               `json:"clean_path,omitempty"`
}

// Analyze reads input once for counts and statistics, then replays its timestamps for
// the time axis. When cleanPath is set every valid row is copied there.
func Analyze(input, cleanPath string) (*Report, error) {
	var clean *imulog.Writer
	if cleanPath != "" {
		w, err := imulog.Create(cleanPath)
		if err != nil {
			return nil, err
		}
		if err := w.WriteHeader(); err != nil {
			w.Close()
			return nil, fmt.Errorf("write %s: %w", cleanPath, err)
		}
		clean = w
	}

	rep, err := scan(input, clean)
	if clean != nil {
		if cerr := clean.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", cleanPath, cerr)
		}
		if err != nil {
			os.Remove(cleanPath)
		}
	}
	if err != nil {
		return nil, err
	}
	rep.CleanPath = cleanPath

	src := imulog.FileSource{Path: input}
	rep.TimeAxis, err = stats.TimeAxis(func(visit func(float64)) error {
		return imulog.ForEach(src, func(r imulog.Row) error {
			visit(r.T)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	return rep, nil
}

func scan(input string, clean *imulog.Writer) (*Report, error) {
	f, err := os.Open(input)
	if err != nil {
		return nil, fmt.Errorf("open data log %s: %w", input, err)
	}
	defer f.Close()

	var ax, ay, az, mag stats.Welford
	r := imulog.NewReader(f)
	for {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		ax.Update(row.Ax)
		ay.Update(row.Ay)
		az.Update(row.Az)
		mag.Update(row.Accel().Norm())
		if clean != nil {
			if err := clean.WriteRow(row); err != nil {
				return nil, fmt.Errorf("write clean row: %w", err)
			}
		}
	}

	warnings := r.Warnings()
	if warnings == nil {
		warnings = []imulog.Warning{}
	}
	return &Report{
		Input:           input,
		Counts:          r.Counts(),
		Warnings:        warnings,
		WarningsDropped: r.WarningsDropped(),
		Statistics: Statistics{
			Ax:  ax.Summary(),
			Ay:  ay.Summary(),
			Az:  az.Summary(),
			Mag: mag.Summary(),
		},
	}, nil
}

// WriteReport stores rep as indented JSON.
func WriteReport(path string, rep *Report) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write analysis report %s: %w", path, err)
	}
	return nil
}

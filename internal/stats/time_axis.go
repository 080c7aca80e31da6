// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stats

import "math"

const timeEps = 1e-9

// TimeAxisIssues counts irregularities between consecutive timestamps.
type TimeAxisIssues struct {
	NonIncreasing int `json:"non_increasing"`
	Duplicates    int `json:"duplicates"`
	Gaps          int `json:"gaps"`
}

// TimeAxisReport describes the sampling interval of a log with millisecond timestamps.
type TimeAxisReport struct {
	DtAvailable   bool           `json:"dt_available"`
	DtMs          *Stats         `json:"dt_ms"`
	SamplingHzEst *float64       `json:"sampling_hz_est"`
	Anomalies     TimeAxisIssues `json:"anomalies"`
}

// TimestampReplay walks the full timestamp sequence from the start, calling visit for
// each one. It is invoked twice by TimeAxis.
type TimestampReplay func(visit func(t float64)) error

// TimeAxis computes interval statistics over positive steps, then counts anomalies
// against the mean step in a second pass.
func TimeAxis(replay TimestampReplay) (TimeAxisReport, error) {
	var rep TimeAxisReport

	var dt Welford
	last, haveLast := 0.0, false
	err := replay(func(t float64) {
		if haveLast {
			if d := t - last; d > 0 {
				dt.Update(d)
			}
		}
		last, haveLast = t, true
	})
	if err != nil {
		return rep, err
	}

	expected := 0.0
	if dt.Count() > 0 && dt.Mean() > timeEps {
		s := dt.Summary()
		hz := 1000.0 / s.Mean
		rep.DtAvailable = true
		rep.DtMs = &s
		rep.SamplingHzEst = &hz
		expected = s.Mean
	}

	last, haveLast = 0.0, false
	err = replay(func(t float64) {
		if haveLast {
			d := t - last
			if d < -timeEps {
				rep.Anomalies.NonIncreasing++
			} else if math.Abs(d) <= timeEps {
				rep.Anomalies.Duplicates++
			}
			if expected > timeEps && d > timeEps && d > 2*expected {
				rep.Anomalies.Gaps++
			}
		}
		last, haveLast = t, true
	})
	return rep, err
}

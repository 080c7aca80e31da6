// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stats provides streaming statistics for sensor logs.
package stats

import "math"

// Stats is the JSON summary of a stream of values.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
}

// Welford accumulates count, mean, variance, min and max in one pass.
type Welford struct {
	count int
	mean  float64
	m2    float64
	min   float64
	max   float64
}

// Update adds one value.
func (w *Welford) Update(v float64) {
	if w.count == 0 {
		w.min = v
		w.max = v
	} else {
		if v < w.min {
			w.min = v
		}
		if v > w.max {
			w.max = v
		}
	}

	w.count++
	delta := v - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (v - w.mean)
}

func (w *Welford) Count() int { return w.count }
func (w *Welford) Mean() float64 { return w.mean }

// Min returns NaN until a value has been seen.
func (w *Welford) Min() float64 {
	if w.count == 0 {
		return math.NaN()
	}
	return w.min
}

// Max returns NaN until a value has been seen.
func (w *Welford) Max() float64 {
	if w.count == 0 {
		return math.NaN()
	}
	return w.max
}

// Variance is the sample variance (n-1 divisor); 0 for fewer than two values.
func (w *Welford) Variance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count-1)
}

func (w *Welford) StdDev() float64 { return math.Sqrt(w.Variance()) }

// Reset clears the accumulator.
func (w *Welford) Reset() { *w = Welford{} }

// Summary converts the accumulator into Stats. An empty accumulator gives the zero
// value so the result is always JSON encodable.
func (w *Welford) Summary() Stats {
	if w.count == 0 {
		return Stats{}
	}
	return Stats{
		Count: w.count,
		Min:   w.min,
		Max:   w.max,
		Mean:  w.mean,
		Std:   w.StdDev(),
	}
}

// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/relabs-tech/accel_calibration/internal/analysis"
	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// RenderSummary formats a calibration result for the terminal.
func RenderSummary(res *calibration.Result) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Accelerometer calibration") + "\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("g=%.6f  rows=%d  L=%d  steady=[%d, %d)",
		res.Gravity, res.ParsedLines, res.L, res.SteadyStart, res.SteadyEnd)) + "\n\n")

	coeffs := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Render("M\n"+formatMat3(res.Model.M)),
		" ",
		boxStyle.Render("b\n"+formatVec3(res.Model.B)),
		" ",
		boxStyle.Render("C = M⁻¹\n"+formatMat3(res.Correction.C)),
	)
	b.WriteString(coeffs + "\n\n")

	b.WriteString(fmt.Sprintf("%-4s %-10s %14s %14s\n", "pos", "inner/outer", "|res raw|", "|res corr|"))
	for i, p := range res.Points {
		pos := res.Positions[i]
		b.WriteString(fmt.Sprintf("%-4d %-10s %14.6g %14.6g\n",
			p.Position, fmt.Sprintf("%d/%d", pos.Inner, pos.Outer), p.ResRaw.Norm(), p.ResCorr.Norm()))
	}
	b.WriteString("\n")

	line := fmt.Sprintf("steady |mag-g|: raw %.6f -> corrected %.6f", res.MaxAbsMagRawSteady, res.MaxAbsMagCorrSteady)
	if res.MaxAbsMagCorrSteady < res.MaxAbsMagRawSteady {
		b.WriteString(okStyle.Render(line) + "\n")
	} else {
		b.WriteString(errStyle.Render(line) + "\n")
	}
	st := res.MagCorrStats
	b.WriteString(helpStyle.Render(fmt.Sprintf("corrected magnitude: n=%d mean=%.6f std=%.3g min=%.6f max=%.6f",
		st.Count, st.Mean, st.Std, st.Min, st.Max)) + "\n")
	if res.WarningsDropped > 0 || len(res.Warnings) > 0 {
		b.WriteString(errStyle.Render(fmt.Sprintf("%d malformed lines skipped", len(res.Warnings)+res.WarningsDropped)) + "\n")
	}
	b.WriteString(helpStyle.Render("output: "+res.OutputPath) + "\n")
	if res.ReportPath != "" {
		b.WriteString(helpStyle.Render("report: "+res.ReportPath) + "\n")
	}
	return b.String()
}

// RenderError formats a failure line.
func RenderError(err error) string {
	return errStyle.Render("Error: " + err.Error())
}

func formatMat3(m vecmath.Mat3) string {
	rows := make([]string, 3)
	for r := 0; r < 3; r++ {
		rows[r] = fmt.Sprintf("% .8f % .8f % .8f", m.A[r][0], m.A[r][1], m.A[r][2])
	}
	return strings.Join(rows, "\n")
}

func formatVec3(v vecmath.Vec3) string {
	return fmt.Sprintf("% .8f\n% .8f\n% .8f", v.X, v.Y, v.Z)
}

// RenderAnalysis formats an analysis report for the terminal.
func RenderAnalysis(rep *analysis.Report) string {
	var b strings.Builder
	b.WriteString("\n" + titleStyle.Render("=== Analysis Summary ===") + "\n")
	fmt.Fprintf(&b, "Input file: %s\n", rep.Input)
	fmt.Fprintf(&b, "Total lines: %d\n", rep.Counts.TotalLines)
	fmt.Fprintf(&b, "Parsed lines: %d\n", rep.Counts.ParsedLines)
	fmt.Fprintf(&b, "Bad lines: %d\n", rep.Counts.BadLines)
	fmt.Fprintf(&b, "Warnings: %d\n", len(rep.Warnings)+rep.WarningsDropped)

	ta := rep.TimeAxis
	if ta.DtAvailable {
		fmt.Fprintf(&b, "\nSampling frequency: %.2f Hz\n", *ta.SamplingHzEst)
		b.WriteString("Time interval stats (ms):\n")
		fmt.Fprintf(&b, "  mean: %.3f\n", ta.DtMs.Mean)
		fmt.Fprintf(&b, "  std:  %.3f\n", ta.DtMs.Std)
	}
	if a := ta.Anomalies; a.NonIncreasing+a.Duplicates+a.Gaps > 0 {
		b.WriteString(errStyle.Render(fmt.Sprintf("time axis: %d non-increasing, %d duplicates, %d gaps",
			a.NonIncreasing, a.Duplicates, a.Gaps)) + "\n")
	}

	m := rep.Statistics.Mag
	b.WriteString(helpStyle.Render(fmt.Sprintf("|a|: n=%d mean=%.6f std=%.3g min=%.6f max=%.6f",
		m.Count, m.Mean, m.Std, m.Min, m.Max)) + "\n")
	if rep.CleanPath != "" {
		b.WriteString(helpStyle.Render("clean copy: "+rep.CleanPath) + "\n")
	}
	return b.String()
}

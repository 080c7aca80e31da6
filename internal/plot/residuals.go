// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package plot renders calibration residuals as a PNG bar chart.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
)

const (
	width      = 640
	height     = 360
	marginLeft = 70
	marginTop  = 30
	plotHeight = 240
	barWidth   = 22

	// Residuals below floor are drawn at the floor of the log axis.
	floor = 1e-9
)

var (
	background = color.RGBA{0xff, 0xff, 0xff, 0xff}
	axisColor  = color.RGBA{0x33, 0x33, 0x33, 0xff}
	rawColor   = color.RGBA{0xd6, 0x45, 0x45, 0xff}
	corrColor  = color.RGBA{0x2f, 0x80, 0xc8, 0xff}
)

// Bar is one position: the magnitude of its raw and corrected residuals.
type Bar struct {
	Label     string
	Raw       float64
	Corrected float64
}

// BarsFromPoints turns report points into bars.
func BarsFromPoints(points []calibration.Point) []Bar {
	bars := make([]Bar, len(points))
	for i, p := range points {
		bars[i] = Bar{
			Label:     fmt.Sprintf("P%d", p.Position),
			Raw:       p.ResRaw.Norm(),
			Corrected: p.ResCorr.Norm(),
		}
	}
	return bars
}

// ResidualChart draws raw and corrected residuals side by side on a log10 axis.
func ResidualChart(title string, bars []Bar) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{axisColor},
		Face: basicfont.Face7x13,
	}
	drawer.Dot = fixed.P(marginLeft, 18)
	drawer.DrawString(title)

	top := floor
	for _, b := range bars {
		top = math.Max(top, math.Max(b.Raw, b.Corrected))
	}
	lo, hi := math.Log10(floor), math.Ceil(math.Log10(top))
	if hi <= lo {
		hi = lo + 1
	}
	baseY := marginTop + plotHeight
	scale := func(v float64) int {
		if v < floor || math.IsNaN(v) {
			v = floor
		}
		return int(float64(plotHeight) * (math.Log10(v) - lo) / (hi - lo))
	}

	// axes and decade labels
	fill(img, image.Rect(marginLeft-1, marginTop, marginLeft, baseY), axisColor)
	fill(img, image.Rect(marginLeft, baseY, width-10, baseY+1), axisColor)
	for d := lo; d <= hi; d += 3 {
		y := baseY - int(float64(plotHeight)*(d-lo)/(hi-lo))
		drawer.Dot = fixed.P(8, y+4)
		drawer.DrawString(fmt.Sprintf("1e%+d", int(d)))
		fill(img, image.Rect(marginLeft-4, y, marginLeft, y+1), axisColor)
	}

	slot := 0
	if len(bars) > 0 {
		slot = (width - marginLeft - 20) / len(bars)
	}
	for i, b := range bars {
		x := marginLeft + 10 + i*slot
		fill(img, image.Rect(x, baseY-scale(b.Raw), x+barWidth, baseY), rawColor)
		fill(img, image.Rect(x+barWidth+2, baseY-scale(b.Corrected), x+2*barWidth+2, baseY), corrColor)
		drawer.Dot = fixed.P(x+barWidth/2, baseY+16)
		drawer.DrawString(b.Label)
	}

	legendY := height - 20
	fill(img, image.Rect(marginLeft, legendY-9, marginLeft+10, legendY+1), rawColor)
	drawer.Dot = fixed.P(marginLeft+14, legendY)
	drawer.DrawString("raw |mean - ref|")
	fill(img, image.Rect(marginLeft+180, legendY-9, marginLeft+190, legendY+1), corrColor)
	drawer.Dot = fixed.P(marginLeft+194, legendY)
	drawer.DrawString("corrected |mean - ref|")

	return img
}

func fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{c}, image.Point{}, draw.Src)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

package plot

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

func TestBarsFromPoints(t *testing.T) {
	bars := BarsFromPoints([]calibration.Point{
		{Position: 1, ResRaw: vecmath.Vec3{X: 3, Y: 4}, ResCorr: vecmath.Vec3{Z: 1e-6}},
	})
	if len(bars) != 1 || bars[0].Label != "P1" || bars[0].Raw != 5 || bars[0].Corrected != 1e-6 {
		t.Errorf("bars = %+v", bars)
	}
}

func TestResidualChartPNG(t *testing.T) {
	bars := []Bar{
		{Label: "P1", Raw: 0.12, Corrected: 1e-13},
		{Label: "P2", Raw: 0.08, Corrected: 2e-6},
	}
	img := ResidualChart("residuals", bars)

	// the raw bar of P1 reaches above the corrected one
	x := marginLeft + 10 + barWidth/2
	if img.RGBAAt(x, marginTop+plotHeight-5) != rawColor {
		t.Errorf("raw bar missing at base")
	}

	path := filepath.Join(t.TempDir(), "res.png")
	if err := WritePNG(path, img); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != width || cfg.Height != height {
		t.Errorf("size = %dx%d", cfg.Width, cfg.Height)
	}
}

func TestResidualChartEmpty(t *testing.T) {
	if img := ResidualChart("empty", nil); img.Bounds().Dx() != width {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

package env

// Sample represents a single environmental measurement (BMP).
type Sample struct {
	Source string `json:"source"` // sensor name, e.g. "spi /dev/spidev0.1"

	Temperature float64 `json:"temp_c"`      // °C
	Pressure    float64 `json:"pressure_pa"` // Pa
}

// PressureHPa returns the pressure in hPa (same as mbar).
func (s Sample) PressureHPa() float64 { return s.Pressure / 100.0 }

package sensors

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accel_calibration/internal/env"
)

// EnvSensor is a BMP280/BME280 next to the IMU. Accelerometer bias drifts with
// temperature, so the recorder notes it for every position.
type EnvSensor struct {
	name string
	port spi.PortCloser
	dev  *bmxx80.Dev
}

// OpenEnvSensor initializes the BMP sensor on spiDev.
func OpenEnvSensor(spiDev string) (*EnvSensor, error) {
	name := "spi " + spiDev
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s BMP: periph host init: %w", name, err)
	}

	port, err := spireg.Open(spiDev)
	if err != nil {
		return nil, fmt.Errorf("%s BMP: SPI open: %w", name, err)
	}

	dev, err := bmxx80.NewSPI(port, &bmxx80.DefaultOpts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("%s BMP: init: %w", name, err)
	}

	return &EnvSensor{name: name, port: port, dev: dev}, nil
}

// ReadEnv reads temperature and pressure.
func (s *EnvSensor) ReadEnv() (env.Sample, error) {
	var e physic.Env
	if err := s.dev.Sense(&e); err != nil {
		return env.Sample{}, fmt.Errorf("%s BMP sense: %w", s.name, err)
	}

	return env.Sample{
		Source:      s.name,
		Temperature: e.Temperature.Celsius(),
		Pressure:    float64(e.Pressure) / float64(physic.Pascal),
	}, nil
}

func (s *EnvSensor) Close() error {
	if err := s.dev.Halt(); err != nil {
		s.port.Close()
		return err
	}
	return s.port.Close()
}

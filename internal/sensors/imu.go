package sensors

import (
	"fmt"
	"time"

	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// Source kinds accepted by Open.
const (
	KindMQTT   = "mqtt"
	KindSerial = "serial"
	KindSPI    = "spi"
	KindSim    = "sim"
)

// Open creates the sample source of the given kind from cfg.
func Open(kind string, cfg *config.Config) (imu.SampleSource, error) {
	switch kind {
	case KindMQTT:
		timeout := 20*cfg.RecordSampleInterval + 2*time.Second
		return NewMQTTSource(cfg.MQTTBroker, cfg.MQTTClientIDRecorder, cfg.TopicIMURaw, cfg.IMUAccelRange, timeout)
	case KindSerial:
		return NewSerialSource(cfg.SerialPort, cfg.SerialBaudRate)
	case KindSPI:
		return NewMPU9250Source(cfg.IMUSPIDevice, cfg.IMUCSPin, cfg.IMUAccelRange, cfg.RecordSampleInterval)
	case KindSim:
		step := float64(cfg.RecordSampleInterval.Microseconds()) / 1000.0
		return NewSimSource(SimModel, cfg.Gravity, 0.02, step, 1), nil
	default:
		return nil, fmt.Errorf("unknown sample source %q (want %s, %s, %s or %s)", kind, KindMQTT, KindSerial, KindSPI, KindSim)
	}
}

package config

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// Calibration
	Gravity         float64 // m/s², magnitude the fit is scaled to
	SteadyStartFrac float64 // start of the steady window as a fraction of a block
	SteadyEndFrac   float64 // end of the steady window as a fraction of a block
	PositionFile    string  // empty means POSITION.txt next to the input log

	// MQTT
	MQTTBroker            string
	MQTTClientIDRecorder  string
	MQTTClientIDPublisher string
	MQTTClientIDProducer  string
	MQTTClientIDDisplay   string
	MQTTClientIDMonitor   string

	// Topics
	TopicIMURaw      string
	TopicCalibration string

	// Serial accelerometer stream
	SerialPort     string
	SerialBaudRate int

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	// BMP Hardware, empty disables temperature logging
	EnvSPIDevice string

	// Display
	DisplayUpdateInterval time.Duration

	// Recorder
	RecordSamplesPerPosition int
	RecordSampleInterval     time.Duration

	// Web Server
	WebServerPort int
	WebDataDir    string // uploaded logs and results, one directory per calibration
}

// Package-level unexported variables for singleton pattern:
//   - globalConfig: unexported so other packages cannot modify it without locking.
//   - configOnce: ensures InitGlobal() only runs once, even if called multiple times.
//   - configMu: RWMutex, write lock for initialization, read lock for Get().
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns a Config with every optional value set.
func Default() *Config {
	return &Config{
		Gravity:                  9.81054,
		SteadyStartFrac:          0.3,
		SteadyEndFrac:            0.7,
		MQTTBroker:               "tcp://localhost:1883",
		MQTTClientIDRecorder:     "accel-calibration-recorder",
		MQTTClientIDPublisher:    "accel-calibration-publisher",
		MQTTClientIDProducer:     "accel-calibration-producer",
		MQTTClientIDDisplay:      "accel-calibration-display",
		MQTTClientIDMonitor:      "accel-calibration-monitor",
		TopicIMURaw:              "inertial/imu/raw",
		TopicCalibration:         "inertial/calibration/accel",
		SerialPort:               "/dev/ttyUSB0",
		SerialBaudRate:           115200,
		GPSSerialPort:            "/dev/serial0",
		GPSBaudRate:              9600,
		IMUSPIDevice:             "/dev/spidev0.0",
		IMUCSPin:                 "GPIO8",
		IMUAccelRange:            0,
		DisplayUpdateInterval:    500 * time.Millisecond,
		RecordSamplesPerPosition: 1000,
		RecordSampleInterval:     10 * time.Millisecond,
		WebServerPort:            8080,
		WebDataDir:               "calibrations",
	}
}

// Load reads the configuration file on top of Default() and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// Calibration
	case "GRAVITY":
		g, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid GRAVITY %q: %w", value, err)
		}
		c.Gravity = g
	case "STEADY_START_FRAC":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid STEADY_START_FRAC %q: %w", value, err)
		}
		c.SteadyStartFrac = f
	case "STEADY_END_FRAC":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid STEADY_END_FRAC %q: %w", value, err)
		}
		c.SteadyEndFrac = f
	case "POSITION_FILE":
		c.PositionFile = value

	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_RECORDER":
		c.MQTTClientIDRecorder = value
	case "MQTT_CLIENT_ID_PUBLISHER":
		c.MQTTClientIDPublisher = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_MONITOR":
		c.MQTTClientIDMonitor = value

	// Topics
	case "TOPIC_IMU_RAW":
		c.TopicIMURaw = value
	case "TOPIC_CALIBRATION":
		c.TopicCalibration = value

	// Serial accelerometer stream
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", value, err)
		}
		c.SerialBaudRate = rate

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid IMU_ACCEL_RANGE %q: %w", value, err)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return fmt.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)

	// BMP Hardware
	case "ENV_SPI_DEVICE":
		c.EnvSPIDevice = value

	// Display
	case "DISPLAY_UPDATE_INTERVAL":
		// milliseconds
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = time.Duration(ms) * time.Millisecond

	// Recorder
	case "RECORD_SAMPLES_PER_POSITION":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RECORD_SAMPLES_PER_POSITION %q: %w", value, err)
		}
		c.RecordSamplesPerPosition = n
	case "RECORD_SAMPLE_INTERVAL":
		// milliseconds
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RECORD_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.RecordSampleInterval = time.Duration(ms) * time.Millisecond

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port
	case "WEB_DATA_DIR":
		c.WebDataDir = value

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// Validate checks ranges that a single key cannot check on its own. Binaries call it
// again after applying command-line overrides.
func (c *Config) Validate() error {
	if !(c.Gravity > 0) || math.IsInf(c.Gravity, 0) {
		return fmt.Errorf("GRAVITY must be positive, got %g", c.Gravity)
	}
	if !(c.SteadyStartFrac >= 0 && c.SteadyStartFrac < c.SteadyEndFrac && c.SteadyEndFrac <= 1) {
		return fmt.Errorf("steady window must satisfy 0 <= STEADY_START_FRAC < STEADY_END_FRAC <= 1, got %g..%g",
			c.SteadyStartFrac, c.SteadyEndFrac)
	}
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be positive")
	}
	if c.GPSBaudRate <= 0 {
		return fmt.Errorf("GPS_BAUD_RATE must be positive")
	}
	if c.RecordSamplesPerPosition <= 0 {
		return fmt.Errorf("RECORD_SAMPLES_PER_POSITION must be positive")
	}
	if c.RecordSampleInterval <= 0 {
		return fmt.Errorf("RECORD_SAMPLE_INTERVAL must be positive")
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	if c.WebDataDir == "" {
		return fmt.Errorf("WEB_DATA_DIR is required")
	}
	return nil
}

// InitGlobal initializes the global configuration from file. An empty path selects
// Default(). Uses sync.Once so only the first call has an effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		if configPath == "" {
			globalConfig = Default()
			return
		}
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

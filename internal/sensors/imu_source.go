// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/accel_calibration/internal/imu"
)

// MPU9250 reads raw accelerometer counts from an MPU-9250 over SPI.
type MPU9250 struct {
	name       string
	dev        *mpu9250.MPU9250
	accelRange byte
}

// OpenMPU9250 initializes an MPU-9250 on spiDev with chip select csPin.
func OpenMPU9250(spiDev, csPin string, accelRange byte) (*MPU9250, error) {
	name := "spi " + spiDev
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: periph host init: %w", name, err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("%s IMU: CS pin %q not found", name, csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: SPI transport (%s): %w", name, spiDev, err)
	}

	dev, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("%s IMU: device creation: %w", name, err)
	}

	if err := dev.Init(); err != nil {
		return nil, fmt.Errorf("%s IMU: initialization: %w", name, err)
	}

	if err := dev.SetAccelRange(accelRange); err != nil {
		return nil, fmt.Errorf("%s IMU: set accel range: %w", name, err)
	}
	log.Printf("%s IMU: accelerometer range set to %d (±%dg)", name, accelRange, []int{2, 4, 8, 16}[accelRange&3])

	return &MPU9250{name: name, dev: dev, accelRange: accelRange}, nil
}

func (m *MPU9250) Name() string { return m.name }

func (m *MPU9250) AccelRange() byte { return m.accelRange }

// ReadRaw reads the three accelerometer axes in counts.
func (m *MPU9250) ReadRaw() (imu.IMURaw, error) {
	ax, err := m.dev.GetAccelerationX()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel X: %w", m.name, err)
	}
	ay, err := m.dev.GetAccelerationY()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Y: %w", m.name, err)
	}
	az, err := m.dev.GetAccelerationZ()
	if err != nil {
		return imu.IMURaw{}, fmt.Errorf("%s IMU accel Z: %w", m.name, err)
	}
	return imu.IMURaw{Source: m.name, Ax: ax, Ay: ay, Az: az}, nil
}

// mpuSource polls an MPU9250 at a fixed interval.
type mpuSource struct {
	dev      *MPU9250
	interval time.Duration
	start    time.Time
	last     time.Time
}

// NewMPU9250Source opens the IMU and samples it every interval.
func NewMPU9250Source(spiDev, csPin string, accelRange byte, interval time.Duration) (imu.SampleSource, error) {
	dev, err := OpenMPU9250(spiDev, csPin, accelRange)
	if err != nil {
		return nil, err
	}
	return &mpuSource{dev: dev, interval: interval}, nil
}

// NextSample waits for the next sampling slot and reads the three accel axes.
func (s *mpuSource) NextSample() (imu.Sample, error) {
	now := time.Now()
	if s.start.IsZero() {
		s.start = now
	} else if wait := s.interval - now.Sub(s.last); wait > 0 {
		time.Sleep(wait)
		now = time.Now()
	}
	s.last = now

	raw, err := s.dev.ReadRaw()
	if err != nil {
		return imu.Sample{}, err
	}
	return raw.ToSample(msSince(s.start, now), s.dev.accelRange), nil
}

func (s *mpuSource) Close() error { return nil }

func msSince(start, now time.Time) float64 {
	return float64(now.Sub(start).Microseconds()) / 1000.0
}

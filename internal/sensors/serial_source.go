// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/imulog"
)

// lineSource reads "ax,ay,az" or "t_ms,ax,ay,az" text lines, already in m/s², from a
// microcontroller streaming over a serial port.
type lineSource struct {
	name   string
	rc     io.ReadCloser
	reader *bufio.Reader
	now    func() time.Time
	start  time.Time
	bad    int
}

// NewSerialSource opens portName at baudRate.
func NewSerialSource(portName string, baudRate int) (imu.SampleSource, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	log.Printf("serial: port opened on %s at %d baud", portName, baudRate)
	return NewLineSource(portName, port), nil
}

// NewLineSource reads samples from any line-oriented stream.
func NewLineSource(name string, rc io.ReadCloser) imu.SampleSource {
	return &lineSource{
		name:   name,
		rc:     rc,
		reader: bufio.NewReader(rc),
		now:    time.Now,
	}
}

// NextSample skips blank, comment and malformed lines. Lines without a timestamp are
// stamped with the time since the first sample.
func (s *lineSource) NextSample() (imu.Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if smp, ok := s.parse(line); ok {
			return smp, nil
		}
		if err != nil {
			if err == io.EOF {
				return imu.Sample{}, io.EOF
			}
			return imu.Sample{}, fmt.Errorf("serial read %s: %w", s.name, err)
		}
	}
}

func (s *lineSource) parse(line string) (imu.Sample, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return imu.Sample{}, false
	}

	fields := strings.Split(line, ",")
	if len(fields) != 3 && len(fields) != 4 {
		s.reject(line)
		return imu.Sample{}, false
	}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, ok := imulog.ParseDecimal(strings.TrimSpace(f))
		if !ok {
			s.reject(line)
			return imu.Sample{}, false
		}
		vals[i] = v
	}

	now := s.now()
	if s.start.IsZero() {
		s.start = now
	}
	smp := imu.Sample{Source: s.name}
	if len(vals) == 4 {
		smp.TimeMs, vals = vals[0], vals[1:]
	} else {
		smp.TimeMs = msSince(s.start, now)
	}
	smp.Ax, smp.Ay, smp.Az = vals[0], vals[1], vals[2]
	return smp, true
}

func (s *lineSource) reject(line string) {
	s.bad++
	if s.bad <= 10 {
		log.Printf("serial: skipping malformed line %q", line)
	}
}

func (s *lineSource) Close() error { return s.rc.Close() }

package gps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
)

// Fix is a position fix taken from an NMEA GGA sentence.
type Fix struct {
	Time       string  `json:"time"`       // e.g. "12:34:56.0000"
	Latitude   float64 `json:"lat"`        // decimal degrees
	Longitude  float64 `json:"lon"`        // decimal degrees
	AltitudeM  float64 `json:"alt_m"`      // above mean sea level
	Quality    string  `json:"quality"`    // GGA fix quality, "0" is invalid
	Satellites int64   `json:"satellites"` // in use
	HDOP       float64 `json:"hdop"`
}

// ErrNoFix is returned when a stream ends before a valid GGA fix was seen.
var ErrNoFix = errors.New("no valid GGA fix")

// ReadFix scans NMEA sentences from r and returns the first GGA sentence with a valid
// fix. Unparseable lines are skipped, as GPS receivers emit partial sentences at start-up.
func ReadFix(r io.Reader) (Fix, error) {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if fix, ok := parseGGA(line); ok {
			return fix, nil
		}
		if err == io.EOF {
			return Fix{}, ErrNoFix
		}
		if err != nil {
			return Fix{}, fmt.Errorf("read NMEA: %w", err)
		}
	}
}

func parseGGA(line string) (Fix, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Fix{}, false
	}
	if sentence.DataType() != nmea.TypeGGA {
		return Fix{}, false
	}

	m := sentence.(nmea.GGA)
	if m.FixQuality == nmea.Invalid || m.FixQuality == "" {
		return Fix{}, false
	}
	return Fix{
		Time:       m.Time.String(),
		Latitude:   m.Latitude,
		Longitude:  m.Longitude,
		AltitudeM:  m.Altitude,
		Quality:    m.FixQuality,
		Satellites: m.NumSatellites,
		HDOP:       m.HDOP,
	}, true
}

// ReadSerialFix opens a GPS receiver on portName and waits for a valid fix.
func ReadSerialFix(portName string, baudRate int) (Fix, error) {
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
		return Fix{}, fmt.Errorf("open GPS port %s: %w", portName, err)
	}
	defer port.Close()
	log.Printf("gps: serial port opened on %s at %d baud, waiting for GGA fix", portName, baudRate)

	return ReadFix(port)
}

package app

import (
	"fmt"
	"log"
	"os"

	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/gps"
	"github.com/relabs-tech/accel_calibration/internal/gravity"
)

// LocalGravity derives the reference gravity from a GPS fix. nmeaPath names a file of
// recorded NMEA sentences; when empty the configured GPS serial port is read instead.
func LocalGravity(nmeaPath string) (float64, gps.Fix, error) {
	var (
		fix gps.Fix
		err error
	)
	if nmeaPath != "" {
		f, oerr := os.Open(nmeaPath)
		if oerr != nil {
			return 0, gps.Fix{}, fmt.Errorf("open NMEA log: %w", oerr)
		}
		defer f.Close()
		fix, err = gps.ReadFix(f)
	} else {
		cfg := config.Get()
		if cfg == nil {
			return 0, gps.Fix{}, fmt.Errorf("config not initialized")
		}
		fix, err = gps.ReadSerialFix(cfg.GPSSerialPort, cfg.GPSBaudRate)
	}
	if err != nil {
		return 0, gps.Fix{}, err
	}

	g, err := gravity.FromFix(fix)
	if err != nil {
		return 0, fix, err
	}
	log.Printf("gps: fix lat=%.6f lon=%.6f alt=%.1fm sats=%d hdop=%.1f -> g=%.6f",
		fix.Latitude, fix.Longitude, fix.AltitudeM, fix.Satellites, fix.HDOP, g)
	return g, fix, nil
}

// RunLocalGravity prints a GRAVITY line for the config file.
func RunLocalGravity(nmeaPath string) error {
	g, fix, err := LocalGravity(nmeaPath)
	if err != nil {
		return err
	}
	fmt.Printf("# lat=%.6f lon=%.6f alt=%.1fm (%s)\n", fix.Latitude, fix.Longitude, fix.AltitudeM, fix.Time)
	fmt.Printf("GRAVITY=%.6f\n", g)
	return nil
}

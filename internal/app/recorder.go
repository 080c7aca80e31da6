// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/relabs-tech/accel_calibration/internal/calibration"
	"github.com/relabs-tech/accel_calibration/internal/config"
	"github.com/relabs-tech/accel_calibration/internal/env"
	"github.com/relabs-tech/accel_calibration/internal/imu"
	"github.com/relabs-tech/accel_calibration/internal/imulog"
	"github.com/relabs-tech/accel_calibration/internal/orientation"
	"github.com/relabs-tech/accel_calibration/internal/sensors"
	"github.com/relabs-tech/accel_calibration/internal/stats"
	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

// misalignWarnDeg flags blocks whose gravity direction is far from the expected one,
// usually a skipped or repeated position.
const misalignWarnDeg = 20.0

// BlockStats summarises the samples captured for one position.
type BlockStats struct {
	Position calibration.Position
	Samples  int
	Mean     vecmath.Vec3
	StdDev   vecmath.Vec3
	Tilt     orientation.Tilt
	// MisalignDeg is the angle between the measured and the expected gravity direction.
	MisalignDeg float64
	// TempC is nil when no environment sensor is attached.
	TempC *float64
}

// RecordOptions drives a guided capture.
type RecordOptions struct {
	Source             imu.SampleSource
	Positions          calibration.Positions
	Output             string
	SamplesPerPosition int
	// Env, when set, is read once per position.
	Env EnvReader

	In  *bufio.Reader
	Out io.Writer
}

// EnvReader reports ambient conditions during a capture.
type EnvReader interface {
	ReadEnv() (env.Sample, error)
}

// flusher is implemented by sources that queue samples in the background.
type flusher interface {
	Flush() int
}

// positioner is implemented by simulated rigs that need to know the current position.
type positioner interface {
	SetPosition(p calibration.Position)
}

// Record walks the operator through every position and captures the same number of
// samples for each one, so the log splits into equal blocks. The position table is
// written next to the output as POSITION.txt.
func Record(opts RecordOptions) ([]BlockStats, error) {
	if opts.SamplesPerPosition <= 0 {
		return nil, fmt.Errorf("samples per position must be positive, got %d", opts.SamplesPerPosition)
	}

	w, err := imulog.Create(opts.Output)
	if err != nil {
		return nil, err
	}
	blocks, err := recordBlocks(opts, w)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close %s: %w", opts.Output, cerr)
	}
	if err != nil {
		os.Remove(opts.Output)
		return nil, err
	}

	posPath := imulog.PositionPath(opts.Output)
	f, err := os.Create(posPath)
	if err != nil {
		return blocks, fmt.Errorf("create %s: %w", posPath, err)
	}
	defer f.Close()
	if err := calibration.WritePositions(f, opts.Positions); err != nil {
		return blocks, fmt.Errorf("write %s: %w", posPath, err)
	}
	log.Printf("recorder: wrote %d rows to %s and positions to %s",
		opts.SamplesPerPosition*calibration.NumPositions, opts.Output, posPath)
	return blocks, nil
}

func recordBlocks(opts RecordOptions, w *imulog.Writer) ([]BlockStats, error) {
	if err := w.WriteHeader(); err != nil {
		return nil, err
	}

	blocks := make([]BlockStats, 0, calibration.NumPositions)
	for i, p := range opts.Positions {
		fmt.Fprintf(opts.Out, "Position %d/%d: inner=%d° outer=%d°. Turn the rig, then keep it still.\n",
			i+1, calibration.NumPositions, p.Inner, p.Outer)
		waitEnter(opts.In, opts.Out, fmt.Sprintf("Press ENTER to start capture (%d samples)...", opts.SamplesPerPosition))

		if ps, ok := opts.Source.(positioner); ok {
			ps.SetPosition(p)
		}
		if fl, ok := opts.Source.(flusher); ok {
			if n := fl.Flush(); n > 0 {
				log.Printf("recorder: discarded %d samples queued while moving", n)
			}
		}

		var ax, ay, az stats.Welford
		for k := 0; k < opts.SamplesPerPosition; k++ {
			s, err := opts.Source.NextSample()
			if err != nil {
				return nil, fmt.Errorf("position %d sample %d: %w", i+1, k, err)
			}
			if err := w.WriteRow(imulog.Row{T: s.TimeMs, Ax: s.Ax, Ay: s.Ay, Az: s.Az}); err != nil {
				return nil, fmt.Errorf("write row: %w", err)
			}
			ax.Update(s.Ax)
			ay.Update(s.Ay)
			az.Update(s.Az)
		}

		b := BlockStats{
			Position: p,
			Samples:  ax.Count(),
			Mean:     vecmath.Vec3{X: ax.Mean(), Y: ay.Mean(), Z: az.Mean()},
			StdDev:   vecmath.Vec3{X: ax.StdDev(), Y: ay.StdDev(), Z: az.StdDev()},
		}
		b.Tilt = orientation.TiltFromAccel(b.Mean)
		b.MisalignDeg = orientation.Angle(b.Mean, calibration.TrueGravity(1, p.Inner, p.Outer))
		if opts.Env != nil {
			if e, err := opts.Env.ReadEnv(); err != nil {
				log.Printf("recorder: env read error: %v", err)
			} else {
				b.TempC = &e.Temperature
			}
		}
		blocks = append(blocks, b)

		fmt.Fprintf(opts.Out, "  Position %d: mean=(%.4f, %.4f, %.4f) std=(%.4f, %.4f, %.4f) |mean|=%.4f\n",
			i+1, b.Mean.X, b.Mean.Y, b.Mean.Z, b.StdDev.X, b.StdDev.Y, b.StdDev.Z, b.Mean.Norm())
		fmt.Fprintf(opts.Out, "  roll=%.1f° pitch=%.1f°, %.1f° from the expected direction\n",
			b.Tilt.Roll, b.Tilt.Pitch, b.MisalignDeg)
		if b.MisalignDeg > misalignWarnDeg {
			fmt.Fprintln(opts.Out, errStyle.Render(fmt.Sprintf("  check the rig: more than %.0f° off position %d", misalignWarnDeg, i+1)))
		}
		if b.TempC != nil {
			fmt.Fprintf(opts.Out, "  temperature %.2f °C\n", *b.TempC)
		}
	}
	return blocks, nil
}

// RunRecorder opens the configured sample source and runs a guided capture on the
// console.
func RunRecorder(kind, output, positionPath string) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	table, err := calibration.LoadPositions(positionPath)
	if err != nil {
		return err
	}

	src, err := sensors.Open(kind, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	var envSensor EnvReader
	if cfg.EnvSPIDevice != "" {
		es, err := sensors.OpenEnvSensor(cfg.EnvSPIDevice)
		if err != nil {
			log.Printf("recorder: no temperature logging: %v", err)
		} else {
			defer es.Close()
			envSensor = es
		}
	}

	fmt.Println(titleStyle.Render("=== Guided 8-position accelerometer capture ==="))
	fmt.Println(helpStyle.Render(fmt.Sprintf("source=%s, %d samples per position, output %s",
		kind, cfg.RecordSamplesPerPosition, output)))
	fmt.Println()

	_, err = Record(RecordOptions{
		Source:             src,
		Positions:          table,
		Output:             output,
		SamplesPerPosition: cfg.RecordSamplesPerPosition,
		Env:                envSensor,
		In:                 bufio.NewReader(os.Stdin),
		Out:                os.Stdout,
	})
	if err != nil {
		return err
	}
	fmt.Println(okStyle.Render("Capture complete. Run imu_analyzer -calib -input " + output))
	return nil
}

func waitEnter(in *bufio.Reader, out io.Writer, prompt string) {
	fmt.Fprint(out, prompt)
	_, _ = in.ReadString('\n')
}

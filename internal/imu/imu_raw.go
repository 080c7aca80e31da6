package imu

// StandardGravity converts accelerometer g units to m/s².
const StandardGravity = 9.80665

// accelLSBPerG is the MPU-9250 sensitivity per ACCEL_FS_SEL range (±2g .. ±16g).
var accelLSBPerG = [4]float64{16384, 8192, 4096, 2048}

// IMURaw is a raw accelerometer reading in sensor counts, as published on the raw IMU
// topic. Producers may add gyro and magnetometer fields; they are ignored here.
type IMURaw struct {
	Source string `json:"source"` // producer name, e.g. "left"

	Ax int16 `json:"ax"`
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`
}

// Sample is one accelerometer reading in m/s² with a millisecond timestamp relative to
// the start of the capture.
type Sample struct {
	Source string  `json:"source"`
	TimeMs float64 `json:"t_ms"`
	Ax     float64 `json:"ax"`
	Ay     float64 `json:"ay"`
	Az     float64 `json:"az"`
}

// SampleSource yields accelerometer samples one at a time.
type SampleSource interface {
	NextSample() (Sample, error)
	Close() error
}

// CountsToMS2 scales a raw count at the given full-scale range to m/s². Ranges above 3
// are treated as ±16g.
func CountsToMS2(count int16, accelRange byte) float64 {
	if accelRange > 3 {
		accelRange = 3
	}
	return float64(count) / accelLSBPerG[accelRange] * StandardGravity
}

// ToSample converts r to m/s² at time tMs.
func (r IMURaw) ToSample(tMs float64, accelRange byte) Sample {
	return Sample{
		Source: r.Source,
		TimeMs: tMs,
		Ax:     CountsToMS2(r.Ax, accelRange),
		Ay:     CountsToMS2(r.Ay, accelRange),
		Az:     CountsToMS2(r.Az, accelRange),
	}
}

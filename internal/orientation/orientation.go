package orientation

import (
	"math"

	"github.com/relabs-tech/accel_calibration/internal/vecmath"
)

// Tilt is the attitude of a static rig as seen by its accelerometer, in degrees.
type Tilt struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// TiltFromAccel computes roll and pitch from a static accelerometer reading. Heading
// is not observable from gravity alone.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func TiltFromAccel(a vecmath.Vec3) Tilt {
	rollRad := math.Atan2(a.Y, a.Z)
	pitchRad := math.Atan2(-a.X, math.Sqrt(a.Y*a.Y+a.Z*a.Z))

	return Tilt{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// Angle returns the angle in degrees between two accelerometer readings, e.g. the
// measured and the expected gravity direction of a rig position.
func Angle(a, b vecmath.Vec3) float64 {
	na, nb := a.Norm(), b.Norm()
	if na == 0 || nb == 0 {
		return math.NaN()
	}
	c := (a.X*b.X + a.Y*b.Y + a.Z*b.Z) / (na * nb)
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180.0 / math.Pi
}

package reco

import (
	"errors"
	"math"
)

// ErrNoTimestamps is returned when motion compensation is requested
// for a frame whose source format carried no per-point time column.
var ErrNoTimestamps = errors.New("reco: frame has no per-point timestamps")

// MotionState describes sensor ego-motion over the frame window,
// assumed constant: body angular rates (rad/s, roll/pitch/yaw order)
// and forward speed along the heading axis (m/s). AnchorTime is the
// instant (same epoch as the point time column) at which the sensor
// frame coincides with the output frame; at that instant the heading
// axis is +Y.
type MotionState struct {
	Omega      [3]float64
	Velocity   float64
	AnchorTime float64
}

// IsZero reports whether compensation would be a no-op.
func (s MotionState) IsZero() bool {
	return s.Omega == [3]float64{} && s.Velocity == 0
}

// CompensateMotion rewrites point positions into the anchor-time
// frame, undoing sensor rotation and translation accrued across the
// sweep. Each point's basis is built from the Euler rates integrated
// over its own time offset, then the point is re-expressed in that
// basis and shifted along the heading by the distance travelled.
//
// Must run before Gridding: it rewrites X, Y, Z and the derived planar
// ranges.
func (f *Frame) CompensateMotion(state MotionState) error {
	if f.Time == nil {
		return ErrNoTimestamps
	}
	if f.gridded {
		return errors.New("reco: CompensateMotion must run before Gridding")
	}
	if state.IsZero() {
		return nil
	}

	for i := 0; i < f.N; i++ {
		t := f.Time[i] - state.AnchorTime

		alpha := state.Omega[0] * t
		beta := state.Omega[1] * t
		gamma := state.Omega[2] * t

		cosAlpha, sinAlpha := math.Cos(alpha), math.Sin(alpha)
		cosBeta, sinBeta := math.Cos(beta), math.Sin(beta)
		cosGamma, sinGamma := math.Cos(gamma), math.Sin(gamma)

		// Up axis after roll and pitch.
		ez0 := -sinBeta
		ez1 := sinAlpha * cosBeta
		ez2 := cosAlpha * cosBeta

		// Heading axis after yaw.
		ey0 := cosBeta * sinGamma
		ey1 := sinAlpha*sinBeta*sinGamma + cosAlpha*cosGamma
		ey2 := cosAlpha*sinBeta*sinGamma - sinAlpha*cosGamma

		// Right axis completes the triad: ex = ey × ez.
		ex0 := ey1*ez2 - ey2*ez1
		ex1 := ey2*ez0 - ey0*ez2
		ex2 := ey0*ez1 - ey1*ez0

		shift := state.Velocity * t

		x, y, z := f.X[i], f.Y[i], f.Z[i]
		f.X[i] = x*ex0 + y*ey0 + z*ez0 + ey0*shift
		f.Y[i] = x*ex1 + y*ey1 + z*ez1 + ey1*shift
		f.Z[i] = x*ex2 + y*ey2 + z*ez2 + ey2*shift
		f.DistXY[i] = math.Hypot(f.X[i], f.Y[i])
		f.Height[i] = f.Z[i] + f.cfg.LidarHeight
	}

	return nil
}

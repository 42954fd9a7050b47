package kinematics

import (
	"fmt"
	"math"
)

// Segment holds the result of a ramp calculation: how far the axis travels
// and how long it takes while linearly changing velocity.
type Segment struct {
	Displacement float64 // EGU (signed, follows velocity sign)
	Duration     float64 // seconds
}

// InvalidVelocityError reports a motor record with unusable velocity
// calibration (zero max velocity or non-positive acceleration time).
type InvalidVelocityError struct {
	MaxVelocity float64
	AccelTime   float64
}

func (e *InvalidVelocityError) Error() string {
	return fmt.Sprintf("invalid velocity calibration: max_velocity=%g acceleration_time=%g",
		e.MaxVelocity, e.AccelTime)
}

// Ramp computes the linear acceleration ramp between vStart and vEnd for an
// axis calibrated to reach maxVelocity in accelTime seconds. One side of the
// transition must be zero (ramp-up starts at rest, ramp-down ends at rest);
// the caller must not request a ramp between two nonzero velocities.
//
// Duration scales linearly with the velocity delta:
//
//	duration = accelTime * |vEnd - vStart| / maxVelocity
//
// Displacement assumes constant acceleration over the ramp:
//
//	displacement = 0.5 * (vStart + vEnd) * duration
func Ramp(vStart, vEnd, maxVelocity, accelTime float64) (Segment, error) {
	if maxVelocity == 0 || accelTime <= 0 {
		return Segment{}, &InvalidVelocityError{MaxVelocity: maxVelocity, AccelTime: accelTime}
	}

	deltaV := math.Abs(vEnd - vStart)
	duration := accelTime * deltaV / maxVelocity
	displacement := 0.5 * (vStart + vEnd) * duration

	return Segment{Displacement: displacement, Duration: duration}, nil
}

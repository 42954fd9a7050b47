package motor

import "context"

// Motor is the capability the trajectory core needs from a compound motor
// record: velocity calibration, the controller output-link descriptor, and
// a blocking absolute move.
type Motor interface {
	Name() string
	// AccelerationTime is the seconds the motor takes to reach MaxVelocity.
	AccelerationTime(ctx context.Context) (float64, error)
	// MaxVelocity is the motor's maximum velocity in EGU/s.
	MaxVelocity(ctx context.Context) (float64, error)
	// OutputLink is the controller descriptor, e.g. "@asyn(BRICK1CS2,1)".
	OutputLink(ctx context.Context) (string, error)
	// Set moves the motor to an absolute position and waits for completion.
	Set(ctx context.Context, position float64) error
}

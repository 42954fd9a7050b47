package trajectory

import (
	"time"

	"github.com/mverdier/flyscan/internal/hw/motor"
)

// TickSeconds is the controller's native time resolution: the uploaded
// duration array is expressed in 1 microsecond ticks.
const TickSeconds = 0.000001

// KickoffSafetyMargin is added to the total scan time to form the execute
// command's timeout budget.
const KickoffSafetyMargin = 10 * time.Second

// Line requests one motor's span of a trajectory: Num mid-steps covering
// [Start, End] in engineering units.
type Line struct {
	Motor motor.Motor
	Start float64
	End   float64
	Num   int
}

// Request is the immutable input to Prepare: one or more motor lines
// sharing a single time per position.
type Request struct {
	Lines           []Line
	TimePerPosition float64 // seconds per mid-step, > 0
}

// CSMapping locates a motor inside the controller: the coordinate-system
// port it belongs to and its 0-based axis slot.
type CSMapping struct {
	Port  string
	Index int
}

// Profile is the assembled upload payload for one trajectory: per-axis
// position and velocity arrays keyed by 0-based CS index, the shared
// tick-count duration array, and the ramp-up start position of each axis.
// All per-axis arrays and the time array have num_positions+1 entries; the
// extra entry carries the ramp-down.
type Profile struct {
	CSPort     string
	Positions  map[int][]float64
	Velocities map[int][]float64
	TimeArray  []int64
	InitialPos map[int]float64

	// ScanTime is the full execution budget in seconds: the sum of the
	// per-step durations plus the global ramp-up and ramp-down times.
	ScanTime float64
}

// Points returns the number of profile points per axis (num_positions+1).
func (p *Profile) Points() int {
	return len(p.TimeArray)
}

// State is the executor lifecycle state.
type State int

const (
	StateIdle State = iota
	StatePrepared
	StateExecuting
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePrepared:
		return "Prepared"
	case StateExecuting:
		return "Executing"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ProgressUpdate is one observation of the running scan: the controller's
// reported percent complete and the wall-clock time since kickoff.
type ProgressUpdate struct {
	Percent float64
	Elapsed time.Duration
}

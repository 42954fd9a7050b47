package trajectory

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/mverdier/flyscan/internal/debug"
	"github.com/mverdier/flyscan/internal/logic/kinematics"
	"github.com/mverdier/flyscan/internal/logic/scanspec"
)

// AxisInput bundles one axis's discretized steps with its coordinate-system
// slot and velocity calibration. Step arrays must all have the same length
// as the shared duration array.
type AxisInput struct {
	Name        string
	CS          CSMapping
	Steps       scanspec.Steps
	MaxVelocity float64 // EGU/s
	AccelTime   float64 // seconds to reach MaxVelocity
}

// BuildProfile turns discretized steps for one or more axes into the arrays
// the controller executes. Per mid-step i each axis samples its midpoint
// position and the mean velocity (upper-lower)/duration; a ramp-up from
// rest is folded into the first tick and a ramp-down to rest is appended as
// one extra profile point, keeping every axis aligned to the shared
// duration array.
func BuildProfile(axes []AxisInput, durations []float64) (*Profile, error) {
	if len(axes) == 0 {
		return nil, &EmptyProfileError{Reason: "no motion axes in request"}
	}
	steps := len(durations)
	if steps == 0 {
		return nil, &EmptyProfileError{Reason: "request has zero positions"}
	}
	for _, d := range durations {
		if d <= 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("non-positive step duration %g", d)}
		}
	}

	p := &Profile{
		Positions:  make(map[int][]float64, len(axes)),
		Velocities: make(map[int][]float64, len(axes)),
		InitialPos: make(map[int]float64, len(axes)),
	}

	// Shared duration array in controller ticks, truncated per step.
	p.TimeArray = make([]int64, 0, steps+1)
	for _, d := range durations {
		p.TimeArray = append(p.TimeArray, int64(d/TickSeconds))
	}

	var runUpTime, runDownTime float64
	for _, axis := range axes {
		if len(axis.Steps.Lower) != steps || len(axis.Steps.Upper) != steps || len(axis.Steps.Midpoint) != steps {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("axis %q step count does not match duration array (%d steps)", axis.Name, steps),
			}
		}
		if _, taken := p.Positions[axis.CS.Index]; taken {
			return nil, &ConfigurationError{
				Reason: fmt.Sprintf("axis %q: CS index %d already in use", axis.Name, axis.CS.Index),
			}
		}

		positions := make([]float64, 0, steps+1)
		velocities := make([]float64, 0, steps+1)
		for i := 0; i < steps; i++ {
			velocities = append(velocities, (axis.Steps.Upper[i]-axis.Steps.Lower[i])/durations[i])
			positions = append(positions, axis.Steps.Midpoint[i])
		}

		// Ramp up from rest to the first sampled velocity; the axis starts
		// the profile a ramp's displacement before its first midpoint.
		rampUp, err := kinematics.Ramp(0, velocities[0], axis.MaxVelocity, axis.AccelTime)
		if err != nil {
			return nil, err
		}
		debug.Ramp(axis.Name, rampUp.Displacement, rampUp.Duration)
		p.InitialPos[axis.CS.Index] = positions[0] - rampUp.Displacement

		// Ramp down from the last sampled velocity to rest. When the scan
		// enters and leaves at the same velocity the ramp-up segment is
		// reused symmetrically.
		var finalPos float64
		var downTime float64
		last := velocities[len(velocities)-1]
		if velocities[0] == last {
			finalPos = positions[len(positions)-1] + rampUp.Displacement
			downTime = rampUp.Duration
		} else {
			rampDown, err := kinematics.Ramp(last, 0, axis.MaxVelocity, axis.AccelTime)
			if err != nil {
				return nil, err
			}
			debug.Ramp(axis.Name, rampDown.Displacement, rampDown.Duration)
			finalPos = positions[len(positions)-1] + rampDown.Displacement
			downTime = rampDown.Duration
		}
		positions = append(positions, finalPos)
		velocities = append(velocities, 0)

		if rampUp.Duration > runUpTime {
			runUpTime = rampUp.Duration
		}
		if downTime > runDownTime {
			runDownTime = downTime
		}

		p.Positions[axis.CS.Index] = positions
		p.Velocities[axis.CS.Index] = velocities
	}

	// The scan's first step absorbs the run-up; the run-down is one extra
	// trailing tick entry shared by all axes.
	p.TimeArray[0] += int64(runUpTime / TickSeconds)
	p.TimeArray = append(p.TimeArray, int64(runDownTime/TickSeconds))

	p.ScanTime = floats.Sum(durations) + runUpTime + runDownTime

	debug.Profile(len(axes), steps+1, p.ScanTime)
	return p, nil
}

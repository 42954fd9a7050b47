package trajectory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mverdier/flyscan/internal/debug"
	"github.com/mverdier/flyscan/internal/hw/controller"
	"github.com/mverdier/flyscan/internal/hw/motor"
	"github.com/mverdier/flyscan/internal/logic/scanspec"
)

// Executor owns one trajectory lifecycle at a time:
//
//	Idle → Prepared → Executing → Completed/Failed
//
// Prepare resolves axes, builds the profile and uploads it; Kickoff issues
// the execute command; Complete observes scan percent until done. A new
// Prepare from a terminal state discards the previous profile. Exactly one
// lifecycle runs per executor; a Prepare racing another, or arriving while
// a scan executes, is rejected with a StateError.
type Executor struct {
	driver       controller.Driver
	pollInterval time.Duration

	mu          sync.Mutex
	state       State
	preparing   bool
	profile     *Profile
	motors      map[int]motor.Motor
	flyStart    time.Time
	deadline    time.Time
	lastPercent float64
	lastErr     error
}

// NewExecutor creates an idle executor polling scan percent at the given
// interval during Complete.
func NewExecutor(driver controller.Driver, pollInterval time.Duration) *Executor {
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	return &Executor{
		driver:       driver,
		pollInterval: pollInterval,
		state:        StateIdle,
	}
}

// State returns the current lifecycle state.
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the error that moved the executor to Failed, if any.
func (e *Executor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Profile returns the profile of the current lifecycle. It is read-only
// once Prepare has returned.
func (e *Executor) Profile() *Profile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.profile
}

// Prepare runs the whole profile computation for a request: resolve each
// motor's CS slot, discretize the lines, compute ramps, assemble the
// arrays, move axes to their ramp-up start positions, and upload. Any
// failure in any sub-step moves the executor to Failed and surfaces the
// originating error unchanged; no partial profile is ever left Prepared.
func (e *Executor) Prepare(ctx context.Context, req Request) error {
	e.mu.Lock()
	if e.preparing {
		e.mu.Unlock()
		return &StateError{Op: "prepare", State: e.state}
	}
	if e.state == StateExecuting {
		e.mu.Unlock()
		return &StateError{Op: "prepare", State: StateExecuting}
	}
	e.preparing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.preparing = false
		e.mu.Unlock()
	}()

	profile, motors, err := e.prepare(ctx, req)
	if err != nil {
		e.fail(err)
		return err
	}

	e.mu.Lock()
	e.profile = profile
	e.motors = motors
	e.flyStart = time.Now()
	e.lastPercent = 0
	e.lastErr = nil
	e.state = StatePrepared
	e.mu.Unlock()
	return nil
}

func (e *Executor) prepare(ctx context.Context, req Request) (*Profile, map[int]motor.Motor, error) {
	if len(req.Lines) == 0 {
		return nil, nil, &EmptyProfileError{Reason: "no motion axes in request"}
	}
	if req.TimePerPosition <= 0 {
		return nil, nil, &EmptyProfileError{Reason: fmt.Sprintf("time_per_position must be > 0, got %g", req.TimePerPosition)}
	}
	for _, line := range req.Lines {
		if line.Num < 1 {
			return nil, nil, &EmptyProfileError{Reason: fmt.Sprintf("axis %q requests %d positions", line.Motor.Name(), line.Num)}
		}
	}

	debug.Section("Preparing Trajectory")

	// Resolve every motor's CS slot before touching the controller, so a
	// request spanning multiple coordinate systems never writes anything.
	mappings := make([]CSMapping, 0, len(req.Lines))
	for _, line := range req.Lines {
		outputLink, err := line.Motor.OutputLink(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("read output link of %s: %w", line.Motor.Name(), err)
		}
		mapping, err := ResolveCS(outputLink)
		if err != nil {
			return nil, nil, err
		}
		debug.Verbose("Axis %s: port=%s index=%d", line.Motor.Name(), mapping.Port, mapping.Index)
		mappings = append(mappings, mapping)
	}
	csPort, err := singleCSPort(mappings)
	if err != nil {
		return nil, nil, err
	}

	// Discretize the declarative lines into bounded mid-steps.
	specLines := make([]scanspec.Line, 0, len(req.Lines))
	for _, line := range req.Lines {
		specLines = append(specLines, scanspec.Line{
			Motor: line.Motor.Name(),
			Start: line.Start,
			End:   line.End,
			Num:   line.Num,
		})
	}
	axes, durations, err := scanspec.Fly(specLines, req.TimePerPosition)
	if err != nil {
		return nil, nil, &ConfigurationError{Reason: err.Error()}
	}

	inputs := make([]AxisInput, 0, len(req.Lines))
	motors := make(map[int]motor.Motor, len(req.Lines))
	for i, line := range req.Lines {
		maxVelocity, err := line.Motor.MaxVelocity(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("read max velocity of %s: %w", line.Motor.Name(), err)
		}
		accelTime, err := line.Motor.AccelerationTime(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("read acceleration time of %s: %w", line.Motor.Name(), err)
		}
		inputs = append(inputs, AxisInput{
			Name:        line.Motor.Name(),
			CS:          mappings[i],
			Steps:       axes[line.Motor.Name()],
			MaxVelocity: maxVelocity,
			AccelTime:   accelTime,
		})
		motors[mappings[i].Index] = line.Motor
	}

	profile, err := BuildProfile(inputs, durations)
	if err != nil {
		return nil, nil, err
	}
	profile.CSPort = csPort

	uploader := &Uploader{Driver: e.driver}
	if err := uploader.Upload(ctx, profile, motors); err != nil {
		return nil, nil, err
	}

	return profile, motors, nil
}

// Kickoff issues the execute command with a timeout of the total scan time
// plus a fixed safety margin. Valid only from Prepared.
func (e *Executor) Kickoff(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StatePrepared {
		state := e.state
		e.mu.Unlock()
		return &StateError{Op: "kickoff", State: state}
	}
	budget := time.Duration(e.profile.ScanTime*float64(time.Second)) + KickoffSafetyMargin
	e.mu.Unlock()

	if err := e.driver.ExecuteProfile(ctx, budget); err != nil {
		err = fmt.Errorf("execute profile: %w", err)
		e.fail(err)
		return err
	}

	e.mu.Lock()
	e.flyStart = time.Now()
	e.deadline = e.flyStart.Add(budget)
	e.lastPercent = 0
	e.state = StateExecuting
	e.mu.Unlock()

	debug.Live("Trajectory kicked off (budget %s)", budget)
	return nil
}

// Complete observes the running scan until the controller reports 100
// percent, invoking observe for every reading. Valid only from Executing.
//
// Cancelling ctx stops observation, not motion: the executor stays
// Executing and a new Complete call picks up where the last reading left
// off. The observed sequence is monotonically non-decreasing by contract;
// a regressing or malformed reading moves the executor to Failed with a
// ProtocolViolation. Exceeding the kickoff budget fails with TimeoutError.
func (e *Executor) Complete(ctx context.Context, observe func(ProgressUpdate)) error {
	e.mu.Lock()
	if e.state != StateExecuting {
		state := e.state
		e.mu.Unlock()
		return &StateError{Op: "complete", State: state}
	}
	flyStart := e.flyStart
	deadline := e.deadline
	e.mu.Unlock()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		percent, err := e.driver.ScanPercent(ctx)
		if err != nil {
			// A cancelled read is the observer detaching, not the controller
			// misbehaving: the trajectory keeps running for the next observer.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			violation := &ProtocolViolation{Reason: fmt.Sprintf("scan percent read failed: %v", err)}
			e.fail(violation)
			return violation
		}
		if math.IsNaN(percent) || percent < 0 {
			violation := &ProtocolViolation{Reason: fmt.Sprintf("malformed scan percent %g", percent)}
			e.fail(violation)
			return violation
		}

		e.mu.Lock()
		if percent < e.lastPercent {
			violation := &ProtocolViolation{
				Reason: fmt.Sprintf("scan percent regressed from %g to %g", e.lastPercent, percent),
			}
			e.mu.Unlock()
			e.fail(violation)
			return violation
		}
		e.lastPercent = percent
		e.mu.Unlock()

		elapsed := time.Since(flyStart)
		debug.Percent(percent, elapsed.Seconds())
		if observe != nil {
			observe(ProgressUpdate{Percent: percent, Elapsed: elapsed})
		}

		if percent >= 100 {
			e.mu.Lock()
			e.state = StateCompleted
			e.mu.Unlock()
			return nil
		}

		if time.Now().After(deadline) {
			timeout := &TimeoutError{Elapsed: elapsed, Budget: deadline.Sub(flyStart)}
			e.fail(timeout)
			return timeout
		}

		select {
		case <-ctx.Done():
			// Observation cancelled; the trajectory keeps running.
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop aborts the running trajectory through the controller's abort
// command. This is the explicit collaborator for halting motion; it is the
// only way a Complete observer's caller can stop the physical scan.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateExecuting {
		state := e.state
		e.mu.Unlock()
		return &StateError{Op: "stop", State: state}
	}
	e.mu.Unlock()

	if err := e.driver.AbortProfile(ctx); err != nil {
		err = fmt.Errorf("abort profile: %w", err)
		e.fail(err)
		return err
	}

	e.fail(ErrAborted)
	return nil
}

func (e *Executor) fail(err error) {
	e.mu.Lock()
	e.state = StateFailed
	e.lastErr = err
	e.mu.Unlock()
	debug.Error(err)
}

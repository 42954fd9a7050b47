package trajectory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mverdier/flyscan/internal/hw/controller"
	"github.com/mverdier/flyscan/internal/hw/motor"
)

func singleLineRequest(m motor.Motor) Request {
	return Request{
		Lines:           []Line{{Motor: m, Start: 0, End: 10, Num: 5}},
		TimePerPosition: 1.0,
	}
}

// newRunningScan prepares and kicks off a 7s simulated scan, sped up so it
// finishes in microseconds unless the test scripts percent readings itself.
func newRunningScan(t *testing.T) (*Executor, *controller.Sim) {
	t.Helper()
	sim := controller.NewSim()
	sim.SetTimeScale(1e6)
	e := NewExecutor(sim, time.Millisecond)
	m := fastSimMotor("x", "@asyn(BRICK1CS2,1)")
	require.NoError(t, e.Prepare(context.Background(), singleLineRequest(m)))
	require.NoError(t, e.Kickoff(context.Background()))
	return e, sim
}

func TestExecutor_PrepareUploadsProfile(t *testing.T) {
	sim := controller.NewSim()
	e := NewExecutor(sim, time.Millisecond)
	m := fastSimMotor("x", "@asyn(BRICK1CS2,1)")

	require.NoError(t, e.Prepare(context.Background(), singleLineRequest(m)))

	assert.Equal(t, StatePrepared, e.State())
	assert.Equal(t, "BRICK1CS2", sim.CSPort())
	assert.Equal(t, 6, sim.PointsToBuild())
	assert.True(t, sim.AxisEnabled(1))
	assert.True(t, sim.Built())
	assert.False(t, sim.CalculateVelocities())

	p := e.Profile()
	require.NotNil(t, p)
	assert.InDelta(t, 7.0, p.ScanTime, 1e-12)
	// The motor sits at its ramp-up start, ready for kickoff.
	assert.InDelta(t, 0.0, m.ReadbackPosition(), 1e-12)
}

func TestExecutor_PrepareRejectsMultipleCoordinateSystems(t *testing.T) {
	sim := controller.NewSim()
	e := NewExecutor(sim, time.Millisecond)
	x := fastSimMotor("x", "@asyn(BRICK1CS1,1)")
	y := fastSimMotor("y", "@asyn(BRICK1CS2,1)")

	err := e.Prepare(context.Background(), Request{
		Lines: []Line{
			{Motor: x, Start: 0, End: 10, Num: 5},
			{Motor: y, Start: 0, End: 5, Num: 5},
		},
		TimePerPosition: 1.0,
	})

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, StateFailed, e.State())

	// Resolution happens before any controller write: the simulator must be
	// untouched.
	assert.Empty(t, sim.CSPort())
	assert.Empty(t, sim.TimeArray())
	assert.False(t, sim.Built())
}

func TestExecutor_PrepareValidation(t *testing.T) {
	m := fastSimMotor("x", "@asyn(BRICK1CS2,1)")
	cases := []struct {
		name string
		req  Request
	}{
		{"no_lines", Request{TimePerPosition: 1.0}},
		{"zero_time_per_position", Request{
			Lines: []Line{{Motor: m, Start: 0, End: 10, Num: 5}},
		}},
		{"zero_positions", Request{
			Lines:           []Line{{Motor: m, Start: 0, End: 10, Num: 0}},
			TimePerPosition: 1.0,
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewExecutor(controller.NewSim(), time.Millisecond)
			err := e.Prepare(context.Background(), tc.req)
			var emptyErr *EmptyProfileError
			require.ErrorAs(t, err, &emptyErr)
			assert.Equal(t, StateFailed, e.State())
		})
	}
}

func TestExecutor_PrepareRejectedWhileExecuting(t *testing.T) {
	e, _ := newRunningScan(t)
	m := fastSimMotor("y", "@asyn(BRICK1CS2,2)")

	err := e.Prepare(context.Background(), singleLineRequest(m))
	var stateErr *StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StateExecuting, e.State())
}

func TestExecutor_LifecycleStateErrors(t *testing.T) {
	e := NewExecutor(controller.NewSim(), time.Millisecond)

	var stateErr *StateError
	require.ErrorAs(t, e.Kickoff(context.Background()), &stateErr)
	require.ErrorAs(t, e.Complete(context.Background(), nil), &stateErr)
	require.ErrorAs(t, e.Stop(context.Background()), &stateErr)
	assert.Equal(t, StateIdle, e.State())
}

func TestExecutor_CompleteObservesToCompletion(t *testing.T) {
	e, _ := newRunningScan(t)

	var updates []ProgressUpdate
	err := e.Complete(context.Background(), func(u ProgressUpdate) {
		updates = append(updates, u)
	})
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, e.State())

	require.NotEmpty(t, updates)
	assert.Equal(t, 100.0, updates[len(updates)-1].Percent)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].Percent, updates[i-1].Percent)
	}
}

func TestExecutor_CompleteCancelAndReattach(t *testing.T) {
	e, sim := newRunningScan(t)
	sim.ScriptPercent(0, 40)

	ctx, cancel := context.WithCancel(context.Background())
	err := e.Complete(ctx, func(u ProgressUpdate) {
		if u.Percent >= 40 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)

	// Cancelling observation leaves the trajectory running.
	assert.Equal(t, StateExecuting, e.State())

	// A fresh Complete picks the scan back up and runs it to the end.
	sim.ScriptPercent(60, 100)
	var last float64
	require.NoError(t, e.Complete(context.Background(), func(u ProgressUpdate) {
		last = u.Percent
	}))
	assert.Equal(t, StateCompleted, e.State())
	assert.Equal(t, 100.0, last)
}

// ctxAwareDriver honors ctx on percent reads the way a live controller
// connection would, instead of the Sim's unconditional in-memory answer.
type ctxAwareDriver struct {
	*controller.Sim
}

func (d *ctxAwareDriver) ScanPercent(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return d.Sim.ScanPercent(ctx)
}

func TestExecutor_CompleteCancelledDriverRead(t *testing.T) {
	sim := controller.NewSim()
	sim.SetTimeScale(1e6)
	e := NewExecutor(&ctxAwareDriver{Sim: sim}, time.Millisecond)
	m := fastSimMotor("x", "@asyn(BRICK1CS2,1)")
	require.NoError(t, e.Prepare(context.Background(), singleLineRequest(m)))
	require.NoError(t, e.Kickoff(context.Background()))

	// The driver surfaces the cancellation from inside the percent read;
	// that is still the observer detaching, not a controller fault.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Complete(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateExecuting, e.State())
	assert.NoError(t, e.Err())

	// A fresh observer can re-attach and run the scan to the end.
	require.NoError(t, e.Complete(context.Background(), nil))
	assert.Equal(t, StateCompleted, e.State())
}

func TestExecutor_CompletePercentRegression(t *testing.T) {
	e, sim := newRunningScan(t)
	sim.ScriptPercent(10, 5)

	err := e.Complete(context.Background(), nil)
	var violation *ProtocolViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, StateFailed, e.State())
	assert.ErrorAs(t, e.Err(), &violation)
}

func TestExecutor_CompleteMalformedPercent(t *testing.T) {
	e, sim := newRunningScan(t)
	sim.ScriptPercent(-1)

	err := e.Complete(context.Background(), nil)
	var violation *ProtocolViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, StateFailed, e.State())
}

func TestExecutor_CompleteTimeout(t *testing.T) {
	e, sim := newRunningScan(t)
	sim.ScriptPercent(50)

	// Force the kickoff budget into the past; the next sub-100 reading must
	// trip the deadline check.
	e.mu.Lock()
	e.deadline = time.Now().Add(-time.Second)
	e.mu.Unlock()

	err := e.Complete(context.Background(), nil)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, StateFailed, e.State())
}

func TestExecutor_StopAbortsMotion(t *testing.T) {
	e, sim := newRunningScan(t)

	require.NoError(t, e.Stop(context.Background()))
	assert.Equal(t, StateFailed, e.State())
	assert.ErrorIs(t, e.Err(), ErrAborted)
	assert.False(t, sim.Executing())
}

func TestExecutor_RestartAfterCompletion(t *testing.T) {
	e, _ := newRunningScan(t)
	require.NoError(t, e.Complete(context.Background(), nil))
	require.Equal(t, StateCompleted, e.State())

	// A terminal executor accepts a fresh lifecycle.
	m := fastSimMotor("y", "@asyn(BRICK1CS2,2)")
	require.NoError(t, e.Prepare(context.Background(), singleLineRequest(m)))
	assert.Equal(t, StatePrepared, e.State())
	require.NoError(t, e.Kickoff(context.Background()))
	require.NoError(t, e.Complete(context.Background(), nil))
	assert.Equal(t, StateCompleted, e.State())
}

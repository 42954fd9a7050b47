package trajectory

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mverdier/flyscan/internal/hw/controller"
	"github.com/mverdier/flyscan/internal/hw/motor"
)

// faultDriver injects a failure into one named controller operation and
// passes everything else through to the simulator.
type faultDriver struct {
	*controller.Sim
	failOn string
}

func (f *faultDriver) inject(op string) error {
	if f.failOn == op {
		return fmt.Errorf("injected %s fault", op)
	}
	return nil
}

func (f *faultDriver) SetProfileCSPort(ctx context.Context, port string) error {
	if err := f.inject("cs_port"); err != nil {
		return err
	}
	return f.Sim.SetProfileCSPort(ctx, port)
}

func (f *faultDriver) SetVelocities(ctx context.Context, axis int, velocities []float64) error {
	if err := f.inject("velocities"); err != nil {
		return err
	}
	return f.Sim.SetVelocities(ctx, axis, velocities)
}

func (f *faultDriver) BuildProfile(ctx context.Context) error {
	if err := f.inject("build"); err != nil {
		return err
	}
	return f.Sim.BuildProfile(ctx)
}

// brokenMotor refuses to move.
type brokenMotor struct {
	name string
}

func (b *brokenMotor) Name() string                                       { return b.name }
func (b *brokenMotor) AccelerationTime(ctx context.Context) (float64, error) { return 1.0, nil }
func (b *brokenMotor) MaxVelocity(ctx context.Context) (float64, error)      { return 2.0, nil }
func (b *brokenMotor) OutputLink(ctx context.Context) (string, error) {
	return "@asyn(BRICK1CS2,1)", nil
}
func (b *brokenMotor) Set(ctx context.Context, position float64) error {
	return fmt.Errorf("motor %s jammed", b.name)
}

func fastSimMotor(name, link string) *motor.Sim {
	m := motor.NewSim(motor.Config{
		Name:             name,
		OutputLink:       link,
		MaxVelocity:      2.0,
		AccelerationTime: 1.0,
	})
	m.SetTimeScale(1e6)
	return m
}

func uploadFixture(t *testing.T) (*Profile, map[int]motor.Motor) {
	t.Helper()
	p, err := BuildProfile([]AxisInput{constantAxis(t)}, []float64{1, 1, 1, 1, 1})
	require.NoError(t, err)
	p.CSPort = "BRICK1CS2"
	motors := map[int]motor.Motor{
		0: fastSimMotor("x", "@asyn(BRICK1CS2,1)"),
	}
	return p, motors
}

func TestUpload_WritesAllRegisters(t *testing.T) {
	sim := controller.NewSim()
	u := &Uploader{Driver: sim}
	profile, motors := uploadFixture(t)

	require.NoError(t, u.Upload(context.Background(), profile, motors))

	assert.Equal(t, "BRICK1CS2", sim.CSPort())
	assert.Equal(t, 6, sim.PointsToBuild())
	assert.True(t, sim.AxisEnabled(1))
	assert.False(t, sim.CalculateVelocities())
	assert.True(t, sim.Built())

	if diff := cmp.Diff(profile.Positions[0], sim.Positions(1)); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(profile.Velocities[0], sim.Velocities(1)); diff != "" {
		t.Errorf("velocities mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(profile.TimeArray, sim.TimeArray()); diff != "" {
		t.Errorf("time array mismatch (-want +got):\n%s", diff)
	}

	// The motor was moved to the ramp-up start before the arrays were written.
	assert.InDelta(t, profile.InitialPos[0], motors[0].(*motor.Sim).ReadbackPosition(), 1e-12)
}

func TestUpload_MissingMotorBinding(t *testing.T) {
	sim := controller.NewSim()
	u := &Uploader{Driver: sim}
	profile, _ := uploadFixture(t)

	err := u.Upload(context.Background(), profile, map[int]motor.Motor{})
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "move to start", upErr.Op)

	// Nothing was written to the controller.
	assert.Empty(t, sim.CSPort())
	assert.False(t, sim.Built())
}

func TestUpload_MoveToStartFails(t *testing.T) {
	sim := controller.NewSim()
	u := &Uploader{Driver: sim}
	profile, _ := uploadFixture(t)

	err := u.Upload(context.Background(), profile, map[int]motor.Motor{
		0: &brokenMotor{name: "x"},
	})
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "move to start", upErr.Op)
	assert.ErrorContains(t, err, "jammed")
	assert.Empty(t, sim.CSPort())
}

func TestUpload_RegisterWriteFails(t *testing.T) {
	sim := controller.NewSim()
	u := &Uploader{Driver: &faultDriver{Sim: sim, failOn: "velocities"}}
	profile, motors := uploadFixture(t)

	err := u.Upload(context.Background(), profile, motors)
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "write velocities axis 1", upErr.Op)

	// Not transactional: writes that preceded the failure stay in place.
	assert.Equal(t, "BRICK1CS2", sim.CSPort())
	assert.NotEmpty(t, sim.Positions(1))
	assert.Empty(t, sim.Velocities(1))
	assert.False(t, sim.Built())
}

func TestUpload_BuildFails(t *testing.T) {
	sim := controller.NewSim()
	u := &Uploader{Driver: &faultDriver{Sim: sim, failOn: "build"}}
	profile, motors := uploadFixture(t)

	err := u.Upload(context.Background(), profile, motors)
	var upErr *UploadError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "build profile", upErr.Op)
	assert.ErrorContains(t, err, "injected build fault")
}

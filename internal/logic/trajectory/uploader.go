package trajectory

import (
	"context"
	"fmt"
	"sort"

	"github.com/mverdier/flyscan/internal/debug"
	"github.com/mverdier/flyscan/internal/hw/controller"
	"github.com/mverdier/flyscan/internal/hw/motor"
)

// Uploader pushes an assembled profile into controller memory. The upload
// is not transactional: a failure part way leaves whatever was written in
// place, and the caller must re-prepare rather than resume.
type Uploader struct {
	Driver controller.Driver
}

// Upload moves every axis to its ramp-up start position, writes the per-axis
// arrays and the shared tick array, selects the uploaded-velocity mode, and
// triggers the profile build. The controller will not accept a build while
// axes sit off their intended starting points, so the moves block first.
func (u *Uploader) Upload(ctx context.Context, profile *Profile, motors map[int]motor.Motor) error {
	// Deterministic axis order keeps logs and failures reproducible.
	indices := make([]int, 0, len(profile.Positions))
	for csIndex := range profile.Positions {
		indices = append(indices, csIndex)
	}
	sort.Ints(indices)

	debug.Step(1, "moving axes to ramp-up start positions")
	for _, csIndex := range indices {
		m, ok := motors[csIndex]
		if !ok {
			return &UploadError{
				Op:  "move to start",
				Err: fmt.Errorf("no motor bound to CS index %d", csIndex),
			}
		}
		if err := m.Set(ctx, profile.InitialPos[csIndex]); err != nil {
			return &UploadError{
				Op:  "move to start",
				Err: fmt.Errorf("motor %s: %w", m.Name(), err),
			}
		}
	}

	debug.Step(2, "writing profile arrays")
	if err := u.Driver.SetProfileCSPort(ctx, profile.CSPort); err != nil {
		return &UploadError{Op: "select CS port", Err: err}
	}
	if err := u.Driver.SetPointsToBuild(ctx, profile.Points()); err != nil {
		return &UploadError{Op: "set points to build", Err: err}
	}
	for _, csIndex := range indices {
		// Controller register fields use 1-based axis numbers.
		axis := csIndex + 1
		if err := u.Driver.SetUseAxis(ctx, axis, true); err != nil {
			return &UploadError{Op: fmt.Sprintf("enable axis %d", axis), Err: err}
		}
		if err := u.Driver.SetPositions(ctx, axis, profile.Positions[csIndex]); err != nil {
			return &UploadError{Op: fmt.Sprintf("write positions axis %d", axis), Err: err}
		}
		if err := u.Driver.SetVelocities(ctx, axis, profile.Velocities[csIndex]); err != nil {
			return &UploadError{Op: fmt.Sprintf("write velocities axis %d", axis), Err: err}
		}
	}
	// The tick array is shared across axes and written once.
	if err := u.Driver.SetTimeArray(ctx, profile.TimeArray); err != nil {
		return &UploadError{Op: "write time array", Err: err}
	}

	debug.Step(3, "arming profile build")
	// Use the uploaded velocity arrays rather than on-controller recomputation.
	if err := u.Driver.SetCalculateVelocities(ctx, false); err != nil {
		return &UploadError{Op: "set velocity mode", Err: err}
	}
	if err := u.Driver.BuildProfile(ctx); err != nil {
		return &UploadError{Op: "build profile", Err: err}
	}

	return nil
}

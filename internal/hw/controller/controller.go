package controller

import (
	"context"
	"fmt"
	"time"
)

// Driver defines the abstract interface to the trajectory controller's
// register fields. This allows plugging in a real controller connection
// or an in-memory simulator for development and tests.
//
// Axis numbers are the controller's external 1-based coordinate-system
// indices. Array writes replace the previous contents wholesale.
type Driver interface {
	SetProfileCSPort(ctx context.Context, port string) error
	SetPointsToBuild(ctx context.Context, points int) error
	SetUseAxis(ctx context.Context, axis int, use bool) error
	SetPositions(ctx context.Context, axis int, positions []float64) error
	SetVelocities(ctx context.Context, axis int, velocities []float64) error
	SetTimeArray(ctx context.Context, ticks []int64) error
	// SetCalculateVelocities selects whether the controller recomputes
	// velocities itself (true) or uses the uploaded velocity arrays (false).
	SetCalculateVelocities(ctx context.Context, calculate bool) error
	BuildProfile(ctx context.Context) error
	// ExecuteProfile arms execution of the built profile. It returns once
	// the command is accepted; completion is observed via ScanPercent.
	ExecuteProfile(ctx context.Context, timeout time.Duration) error
	// AbortProfile halts the running trajectory. Separate from progress
	// observation: cancelling an observer never aborts motion.
	AbortProfile(ctx context.Context) error
	// ScanPercent reads the controller-reported completion (0-100).
	ScanPercent(ctx context.Context) (float64, error)
	Close() error
}

// NewDriver creates a controller driver for the configured type.
// Only the in-memory simulator is wired in this build; a live controller
// connection plugs in behind the same interface.
func NewDriver(driverType string) (Driver, error) {
	switch driverType {
	case "sim", "":
		return NewSim(), nil
	default:
		return nil, fmt.Errorf("unknown controller type %q", driverType)
	}
}

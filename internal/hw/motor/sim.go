package motor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mverdier/flyscan/internal/debug"
)

// Config holds the record data for a simulated motor.
type Config struct {
	Name             string
	OutputLink       string  // controller descriptor, e.g. "@asyn(BRICK1CS2,1)"
	MaxVelocity      float64 // EGU/s
	AccelerationTime float64 // seconds to reach MaxVelocity
	Position         float64 // initial readback position (EGU)
}

// Sim is a record-backed motor. Moves take the kinematic move time
// (acceleration plus cruise), scaled by the simulation time scale.
type Sim struct {
	mu        sync.Mutex
	cfg       Config
	position  float64
	timeScale float64
}

// NewSim creates a simulated motor from its record configuration.
func NewSim(cfg Config) *Sim {
	return &Sim{
		cfg:       cfg,
		position:  cfg.Position,
		timeScale: 1.0,
	}
}

// SetTimeScale speeds up (>1) or slows down (<1) simulated moves.
func (m *Sim) SetTimeScale(scale float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if scale > 0 {
		m.timeScale = scale
	}
}

func (m *Sim) Name() string {
	return m.cfg.Name
}

func (m *Sim) AccelerationTime(ctx context.Context) (float64, error) {
	return m.cfg.AccelerationTime, nil
}

func (m *Sim) MaxVelocity(ctx context.Context) (float64, error) {
	return m.cfg.MaxVelocity, nil
}

func (m *Sim) OutputLink(ctx context.Context) (string, error) {
	return m.cfg.OutputLink, nil
}

// Set moves to an absolute position, sleeping for the scaled move time.
// The move is interruptible through ctx; an interrupted move leaves the
// readback at the target (the sim does not model partial travel).
func (m *Sim) Set(ctx context.Context, position float64) error {
	m.mu.Lock()
	delta := math.Abs(position - m.position)
	moveTime := m.cfg.AccelerationTime
	if m.cfg.MaxVelocity > 0 {
		moveTime += delta / m.cfg.MaxVelocity
	}
	scaled := time.Duration(float64(time.Second) * moveTime / m.timeScale)
	m.mu.Unlock()

	debug.Axis(m.cfg.Name, position)

	if scaled > 0 {
		timer := time.NewTimer(scaled)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	m.position = position
	m.mu.Unlock()
	return nil
}

// ReadbackPosition returns the current simulated position.
func (m *Sim) ReadbackPosition() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

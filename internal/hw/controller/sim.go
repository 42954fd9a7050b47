package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mverdier/flyscan/internal/debug"
)

// Sim is an in-memory controller used for development and tests. It stores
// whatever the uploader writes, enforces the build preconditions a real
// controller enforces, and advances scan percent against the wall clock
// once a profile is executing.
type Sim struct {
	mu sync.Mutex

	csPort     string
	points     int
	useAxis    map[int]bool
	positions  map[int][]float64
	velocities map[int][]float64
	timeArray  []int64
	calcVel    bool
	built      bool

	executing bool
	started   time.Time
	total     time.Duration

	// timeScale > 1 makes the simulated scan run faster than wall clock.
	timeScale float64

	// scripted percent readings, consumed one per ScanPercent call.
	script []float64
}

// NewSim creates a simulator with no profile loaded.
func NewSim() *Sim {
	return &Sim{
		useAxis:    make(map[int]bool),
		positions:  make(map[int][]float64),
		velocities: make(map[int][]float64),
		calcVel:    true,
		timeScale:  1.0,
	}
}

// SetTimeScale speeds up (>1) or slows down (<1) the simulated scan clock.
func (s *Sim) SetTimeScale(scale float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scale > 0 {
		s.timeScale = scale
	}
}

// ScriptPercent makes subsequent ScanPercent calls return the given values
// in order (then fall back to the clock model). Used to exercise observer
// edge cases in tests.
func (s *Sim) ScriptPercent(values ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, values...)
}

func (s *Sim) SetProfileCSPort(ctx context.Context, port string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", "ProfileCSPort", port)
	s.csPort = port
	return nil
}

func (s *Sim) SetPointsToBuild(ctx context.Context, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", "PointsToBuild", points)
	s.points = points
	return nil
}

func (s *Sim) SetUseAxis(ctx context.Context, axis int, use bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", fmt.Sprintf("UseAxis[%d]", axis), use)
	s.useAxis[axis] = use
	return nil
}

func (s *Sim) SetPositions(ctx context.Context, axis int, positions []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", fmt.Sprintf("Positions[%d]", axis), len(positions))
	s.positions[axis] = append([]float64(nil), positions...)
	return nil
}

func (s *Sim) SetVelocities(ctx context.Context, axis int, velocities []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", fmt.Sprintf("Velocities[%d]", axis), len(velocities))
	s.velocities[axis] = append([]float64(nil), velocities...)
	return nil
}

func (s *Sim) SetTimeArray(ctx context.Context, ticks []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", "TimeArray", len(ticks))
	s.timeArray = append([]int64(nil), ticks...)
	return nil
}

func (s *Sim) SetCalculateVelocities(ctx context.Context, calculate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", "ProfileCalcVel", calculate)
	s.calcVel = calculate
	return nil
}

// BuildProfile checks the same preconditions a real controller does: a CS
// port selected, a point count, and every enabled axis carrying arrays of
// exactly that length, time array included.
func (s *Sim) BuildProfile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", "BuildProfile", true)

	if s.csPort == "" {
		return fmt.Errorf("build profile: no CS port selected")
	}
	if s.points <= 0 {
		return fmt.Errorf("build profile: points to build not set")
	}
	if len(s.timeArray) != s.points {
		return fmt.Errorf("build profile: time array has %d entries, want %d", len(s.timeArray), s.points)
	}
	enabled := 0
	for axis, use := range s.useAxis {
		if !use {
			continue
		}
		enabled++
		if len(s.positions[axis]) != s.points {
			return fmt.Errorf("build profile: axis %d has %d positions, want %d", axis, len(s.positions[axis]), s.points)
		}
		if !s.calcVel && len(s.velocities[axis]) != s.points {
			return fmt.Errorf("build profile: axis %d has %d velocities, want %d", axis, len(s.velocities[axis]), s.points)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("build profile: no axes enabled")
	}

	s.built = true
	return nil
}

func (s *Sim) ExecuteProfile(ctx context.Context, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", "ExecuteProfile", timeout)

	if !s.built {
		return fmt.Errorf("execute profile: no profile built")
	}

	var totalTicks int64
	for _, t := range s.timeArray {
		totalTicks += t
	}
	s.total = time.Duration(totalTicks) * time.Microsecond
	s.started = time.Now()
	s.executing = true
	return nil
}

func (s *Sim) AbortProfile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	debug.Field("write", "AbortProfile", true)
	s.executing = false
	return nil
}

func (s *Sim) ScanPercent(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.script) > 0 {
		pct := s.script[0]
		s.script = s.script[1:]
		debug.Field("read", "ScanPercent", pct)
		return pct, nil
	}

	if !s.executing {
		return 0, nil
	}
	if s.total <= 0 {
		return 100, nil
	}
	elapsed := time.Duration(float64(time.Since(s.started)) * s.timeScale)
	pct := 100 * float64(elapsed) / float64(s.total)
	if pct >= 100 {
		pct = 100
		s.executing = false
	}
	debug.Field("read", "ScanPercent", pct)
	return pct, nil
}

func (s *Sim) Close() error {
	debug.Trace("controller close (sim)")
	return nil
}

// --- inspection helpers for tests and the CLI summary ---

// CSPort returns the selected coordinate-system port.
func (s *Sim) CSPort() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csPort
}

// PointsToBuild returns the last written point count.
func (s *Sim) PointsToBuild() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}

// AxisEnabled reports whether the given 1-based axis is enabled.
func (s *Sim) AxisEnabled(axis int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.useAxis[axis]
}

// Positions returns the uploaded position array for the given 1-based axis.
func (s *Sim) Positions(axis int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.positions[axis]...)
}

// Velocities returns the uploaded velocity array for the given 1-based axis.
func (s *Sim) Velocities(axis int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.velocities[axis]...)
}

// TimeArray returns the uploaded shared tick-count array.
func (s *Sim) TimeArray() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.timeArray...)
}

// CalculateVelocities reports the on-controller velocity mode flag.
func (s *Sim) CalculateVelocities() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calcVel
}

// Built reports whether a profile build has been triggered successfully.
func (s *Sim) Built() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.built
}

// Executing reports whether the simulated scan is still running.
func (s *Sim) Executing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executing
}

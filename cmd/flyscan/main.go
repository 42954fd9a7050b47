package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mverdier/flyscan/internal/config"
	"github.com/mverdier/flyscan/internal/debug"
	"github.com/mverdier/flyscan/internal/hw/controller"
	"github.com/mverdier/flyscan/internal/hw/motor"
	"github.com/mverdier/flyscan/internal/logic/trajectory"
	"github.com/mverdier/flyscan/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	startPosition := flag.Float64("start_position", 0, "override scan start position (EGU)")
	endPosition := flag.Float64("end_position", 0, "override scan end position (EGU)")
	numPositions := flag.Int("num_positions", 0, "override number of scan positions (>= 1)")
	timePerPosition := flag.Float64("time_per_position", 0, "override time per position in seconds (> 0)")
	timeScale := flag.Float64("time_scale", 1, "simulation speed multiplier (sim controller only)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	if err := validateCLIOverrides(*startPosition, *endPosition, *numPositions, *timePerPosition); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}

	// Apply CLI overrides to config
	applyOverrides(cfg, web.Overrides{
		StartPosition:   *startPosition,
		EndPosition:     *endPosition,
		NumPositions:    *numPositions,
		TimePerPosition: *timePerPosition,
	})

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	// Initialize controller driver
	debug.Step(1, "Initializing controller driver")
	debug.Value("Controller type", cfg.Controller.Type)
	driver, err := controller.NewDriver(cfg.Controller.Type)
	if err != nil {
		log.Fatalf("init controller failed: %v", err)
	}
	defer func() {
		if err := driver.Close(); err != nil {
			log.Printf("closing controller driver failed: %v", err)
		}
	}()
	if sim, ok := driver.(*controller.Sim); ok && *timeScale != 1 {
		sim.SetTimeScale(*timeScale)
	}

	// Initialize motors
	debug.Step(2, "Initializing motors")
	motors := make(map[string]*motor.Sim, len(cfg.Motors))
	for _, mc := range cfg.Motors {
		m := motor.NewSim(motor.Config{
			Name:             mc.Name,
			OutputLink:       mc.OutputLink,
			MaxVelocity:      mc.MaxVelocity,
			AccelerationTime: mc.AccelerationTime,
			Position:         mc.Position,
		})
		if *timeScale != 1 {
			m.SetTimeScale(*timeScale)
		}
		motors[mc.Name] = m
		debug.PrintStruct("Motor config", mc)
	}

	// Trajectory executor: one lifecycle at a time per device
	debug.Step(3, "Creating trajectory executor")
	executor := trajectory.NewExecutor(driver, cfg.PollInterval())

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		metrics := web.NewMetrics()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		runTrajectory := func(ctx context.Context, overrides web.Overrides) error {
			return executeTrajectory(ctx, cfg, executor, motors, broadcaster, metrics, overrides)
		}

		formDefaults := web.FormConfig{
			StartPosition:   cfg.Scan.StartPosition,
			EndPosition:     cfg.Scan.EndPosition,
			NumPositions:    cfg.Scan.NumPositions,
			TimePerPosition: cfg.Scan.TimePerPosition,
		}
		srv := web.NewServer(webAddr, broadcaster, runTrajectory, formDefaults)
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	// Run trajectory once with current config (already has CLI overrides applied)
	if err := executeTrajectory(ctx, cfg, executor, motors, nil, nil, web.Overrides{}); err != nil {
		log.Fatalf("trajectory failed: %v", err)
	}
}

// executeTrajectory runs one prepare/kickoff/complete lifecycle with the
// given config and overrides, broadcasting progress when a broadcaster is
// attached.
func executeTrajectory(
	ctx context.Context,
	baseCfg *config.Config,
	executor *trajectory.Executor,
	motors map[string]*motor.Sim,
	broadcaster *web.StatusBroadcaster,
	metrics *web.Metrics,
	overrides web.Overrides,
) error {
	cfg := applyOverridesToCopy(baseCfg, overrides)

	m, ok := motors[cfg.Scan.Motor]
	if !ok {
		return fmt.Errorf("scan motor %q is not configured", cfg.Scan.Motor)
	}

	req := trajectory.Request{
		Lines: []trajectory.Line{{
			Motor: m,
			Start: cfg.Scan.StartPosition,
			End:   cfg.Scan.EndPosition,
			Num:   cfg.Scan.NumPositions,
		}},
		TimePerPosition: cfg.Scan.TimePerPosition,
	}

	debug.Summary("Trajectory Run")
	debug.Value("Motor", cfg.Scan.Motor)
	debug.Value("Start position", cfg.Scan.StartPosition)
	debug.Value("End position", cfg.Scan.EndPosition)
	debug.Value("Positions", cfg.Scan.NumPositions)
	debug.Value("Time per position", cfg.Scan.TimePerPosition)

	debug.Step(4, "Preparing profile")
	if err := executor.Prepare(ctx, req); err != nil {
		if metrics != nil {
			metrics.ExecutionsTotal.WithLabelValues("failed").Inc()
		}
		return err
	}
	if metrics != nil {
		metrics.PreparesTotal.Inc()
	}
	debug.Value("Scan time", executor.Profile().ScanTime)

	debug.Step(5, "Kicking off execution")
	if err := executor.Kickoff(ctx); err != nil {
		if metrics != nil {
			metrics.ExecutionsTotal.WithLabelValues("failed").Inc()
		}
		return err
	}

	debug.Step(6, "Observing completion")
	err := executor.Complete(ctx, func(u trajectory.ProgressUpdate) {
		if broadcaster != nil {
			broadcaster.BroadcastProgress(u.Percent, u.Elapsed)
		}
		if metrics != nil {
			metrics.ScanPercent.Set(u.Percent)
		}
	})
	if err != nil {
		if metrics != nil {
			metrics.ExecutionsTotal.WithLabelValues("failed").Inc()
		}
		return err
	}

	if metrics != nil {
		metrics.ExecutionsTotal.WithLabelValues("completed").Inc()
	}
	debug.Section("Trajectory Complete")
	return nil
}

// validateCLIOverrides checks that non-zero CLI overrides are sane.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(start, end float64, num int, timePerPosition float64) error {
	if math.IsNaN(start) || math.IsInf(start, 0) {
		return fmt.Errorf("start_position must be finite, got %g", start)
	}
	if math.IsNaN(end) || math.IsInf(end, 0) {
		return fmt.Errorf("end_position must be finite, got %g", end)
	}
	if num < 0 {
		return fmt.Errorf("num_positions must be >= 1, got %d", num)
	}
	if timePerPosition != 0 {
		if math.IsNaN(timePerPosition) || math.IsInf(timePerPosition, 0) || timePerPosition < 0 {
			return fmt.Errorf("time_per_position must be > 0, got %g", timePerPosition)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, overrides web.Overrides) {
	if overrides.StartPosition != 0 {
		cfg.Scan.StartPosition = overrides.StartPosition
	}
	if overrides.EndPosition != 0 {
		cfg.Scan.EndPosition = overrides.EndPosition
	}
	if overrides.NumPositions > 0 {
		cfg.Scan.NumPositions = overrides.NumPositions
	}
	if overrides.TimePerPosition > 0 {
		cfg.Scan.TimePerPosition = overrides.TimePerPosition
	}
}

// applyOverridesToCopy returns a new config with overrides applied.
// Zero values in overrides mean "use base config".
func applyOverridesToCopy(baseCfg *config.Config, overrides web.Overrides) *config.Config {
	cfg := *baseCfg
	if overrides.StartPosition != 0 {
		cfg.Scan.StartPosition = overrides.StartPosition
	}
	if overrides.EndPosition != 0 {
		cfg.Scan.EndPosition = overrides.EndPosition
	}
	if overrides.NumPositions > 0 {
		cfg.Scan.NumPositions = overrides.NumPositions
	}
	if overrides.TimePerPosition > 0 {
		cfg.Scan.TimePerPosition = overrides.TimePerPosition
	}
	return &cfg
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

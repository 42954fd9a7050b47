package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MotorConfig holds the static record data for one compound motor.
type MotorConfig struct {
	Name             string  `yaml:"name"`              // axis name, e.g. "x"
	OutputLink       string  `yaml:"output_link"`       // controller descriptor, e.g. "@asyn(BRICK1CS2,1)"
	MaxVelocity      float64 `yaml:"max_velocity"`      // EGU/s
	AccelerationTime float64 `yaml:"acceleration_time"` // seconds to reach max_velocity
	Position         float64 `yaml:"position"`          // initial readback position (EGU)
}

// ControllerConfig describes how to reach the trajectory controller.
type ControllerConfig struct {
	Type           string `yaml:"type"`             // e.g., "sim"
	PollIntervalMs int    `yaml:"poll_interval_ms"` // scan-percent polling period
}

// ScanConfig contains default trajectory parameters (overridable per run).
type ScanConfig struct {
	Motor           string  `yaml:"motor"`             // motor to fly; defaults to the first configured motor
	StartPosition   float64 `yaml:"start_position"`    // EGU
	EndPosition     float64 `yaml:"end_position"`      // EGU
	NumPositions    int     `yaml:"num_positions"`     // mid-steps in the scan
	TimePerPosition float64 `yaml:"time_per_position"` // seconds per mid-step
}

// DefaultsConfig contains generic parameters (debug, etc.).
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
	Motors     []MotorConfig    `yaml:"motors"`
	Scan       ScanConfig       `yaml:"scan"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Controller.Type == "" {
		cfg.Controller.Type = "sim"
	}
	if cfg.Controller.PollIntervalMs <= 0 {
		cfg.Controller.PollIntervalMs = 250 // reasonable default
	}
	if len(cfg.Motors) == 0 {
		return nil, fmt.Errorf("at least one motor is required")
	}
	for i, m := range cfg.Motors {
		if m.Name == "" {
			return nil, fmt.Errorf("motors[%d]: name is required", i)
		}
		if m.OutputLink == "" {
			return nil, fmt.Errorf("motor %q: output_link is required", m.Name)
		}
		if m.MaxVelocity <= 0 {
			return nil, fmt.Errorf("motor %q: max_velocity must be > 0, got %g", m.Name, m.MaxVelocity)
		}
		if m.AccelerationTime <= 0 {
			return nil, fmt.Errorf("motor %q: acceleration_time must be > 0, got %g", m.Name, m.AccelerationTime)
		}
	}
	if cfg.Scan.Motor == "" {
		cfg.Scan.Motor = cfg.Motors[0].Name
	} else if cfg.Motor(cfg.Scan.Motor) == nil {
		return nil, fmt.Errorf("scan.motor %q is not a configured motor", cfg.Scan.Motor)
	}
	if cfg.Scan.NumPositions <= 0 {
		cfg.Scan.NumPositions = 10 // reasonable default
	}
	if cfg.Scan.TimePerPosition <= 0 {
		cfg.Scan.TimePerPosition = 1.0 // 1s per mid-step
	}
	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	return &cfg, nil
}

// PollInterval returns the scan-percent polling period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Controller.PollIntervalMs) * time.Millisecond
}

// Motor returns the configuration for a named motor, or nil if unknown.
func (c *Config) Motor(name string) *MotorConfig {
	for i := range c.Motors {
		if c.Motors[i].Name == name {
			return &c.Motors[i]
		}
	}
	return nil
}

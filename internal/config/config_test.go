package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
controller:
  type: sim
  poll_interval_ms: 100
motors:
  - name: x
    output_link: "@asyn(BRICK1CS2,1)"
    max_velocity: 2.0
    acceleration_time: 1.0
  - name: y
    output_link: "@asyn(BRICK1CS2,2)"
    max_velocity: 5.0
    acceleration_time: 0.5
scan:
  motor: y
  start_position: 0.0
  end_position: 10.0
  num_positions: 5
  time_per_position: 1.0
defaults:
  debug_level: 3
`

func TestLoad_Valid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Controller.Type != "sim" {
		t.Errorf("controller type = %q, want sim", cfg.Controller.Type)
	}
	if got := cfg.PollInterval(); got != 100*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 100ms", got)
	}
	if len(cfg.Motors) != 2 {
		t.Fatalf("got %d motors, want 2", len(cfg.Motors))
	}
	if cfg.Scan.Motor != "y" {
		t.Errorf("scan motor = %q, want y", cfg.Scan.Motor)
	}
	if cfg.Scan.NumPositions != 5 {
		t.Errorf("num_positions = %d, want 5", cfg.Scan.NumPositions)
	}
	if cfg.Defaults.DebugLevel != 3 {
		t.Errorf("debug_level = %d, want 3", cfg.Defaults.DebugLevel)
	}

	m := cfg.Motor("x")
	if m == nil || m.OutputLink != "@asyn(BRICK1CS2,1)" {
		t.Errorf("Motor(x) = %+v", m)
	}
	if cfg.Motor("z") != nil {
		t.Error("Motor(z) should be nil")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
motors:
  - name: x
    output_link: "@asyn(CS1,1)"
    max_velocity: 1.0
    acceleration_time: 1.0
`))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Controller.Type != "sim" {
		t.Errorf("default controller type = %q, want sim", cfg.Controller.Type)
	}
	if got := cfg.PollInterval(); got != 250*time.Millisecond {
		t.Errorf("default PollInterval() = %v, want 250ms", got)
	}
	if cfg.Scan.Motor != "x" {
		t.Errorf("scan motor defaulted to %q, want first motor x", cfg.Scan.Motor)
	}
	if cfg.Scan.NumPositions != 10 {
		t.Errorf("default num_positions = %d, want 10", cfg.Scan.NumPositions)
	}
	if cfg.Scan.TimePerPosition != 1.0 {
		t.Errorf("default time_per_position = %g, want 1", cfg.Scan.TimePerPosition)
	}
	if cfg.Defaults.DebugLevel != 0 {
		t.Errorf("default debug_level = %d, want 0", cfg.Defaults.DebugLevel)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no_motors", `
controller:
  type: sim
`, "at least one motor"},
		{"missing_name", `
motors:
  - output_link: "@asyn(CS1,1)"
    max_velocity: 1.0
    acceleration_time: 1.0
`, "name is required"},
		{"missing_output_link", `
motors:
  - name: x
    max_velocity: 1.0
    acceleration_time: 1.0
`, "output_link is required"},
		{"zero_max_velocity", `
motors:
  - name: x
    output_link: "@asyn(CS1,1)"
    max_velocity: 0
    acceleration_time: 1.0
`, "max_velocity"},
		{"zero_acceleration_time", `
motors:
  - name: x
    output_link: "@asyn(CS1,1)"
    max_velocity: 1.0
    acceleration_time: 0
`, "acceleration_time"},
		{"unknown_scan_motor", `
motors:
  - name: x
    output_link: "@asyn(CS1,1)"
    max_velocity: 1.0
    acceleration_time: 1.0
scan:
  motor: z
`, "not a configured motor"},
		{"bad_debug_level", `
motors:
  - name: x
    output_link: "@asyn(CS1,1)"
    max_velocity: 1.0
    acceleration_time: 1.0
defaults:
  debug_level: 7
`, "debug_level"},
		{"bad_yaml", `{{{`, "yaml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

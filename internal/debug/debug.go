package debug

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (profile summary, scan time)
	LevelLive    = 2 // Live info (axis moves, percent updates)
	LevelVerbose = 3 // Verbose (ramp calculations, array contents)
	LevelTrace   = 4 // Trace (controller register writes, very low level)
)

var (
	level  int
	logger *log.Logger
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (profile summary, total scan time)
// 2 = live info (axis moves, percent-complete updates)
// 3 = verbose (ramp calculations, per-axis arrays)
// 4 = trace (controller register writes, very low level)
func Init(debugLevel int) {
	level = debugLevel
	if level > LevelOff {
		logger = log.New(os.Stdout, "[flyscan] ", log.LstdFlags|log.Lmicroseconds)
	}
}

// SetOutput redirects debug output, e.g. to tee into the web broadcaster.
func SetOutput(w io.Writer) {
	if logger != nil {
		logger.SetOutput(w)
	}
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] "+format, args...)
	}
}

// Summary prints an important summary (level 1).
func Summary(title string) {
	if level >= LevelOff && logger != nil {
		logger.Printf("═══════════════════════════════════════")
		logger.Printf("  %s", title)
		logger.Printf("═══════════════════════════════════════")
	}
}

// Profile prints important profile info (level 1).
func Profile(axes, points int, scanTime float64) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO] Profile: %d axes x %d points, scan time %.3fs", axes, points, scanTime)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[INFO]   %s = %v", name, value)
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] "+format, args...)
	}
}

// Axis prints an axis move (level 2).
func Axis(motor string, position float64) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Axis %s: move to %.4f", motor, position)
	}
}

// Percent prints a scan-percent update (level 2).
func Percent(pct float64, elapsedSec float64) {
	if level >= LevelLive && logger != nil {
		logger.Printf("[LIVE] Scan %.0f%% complete (%.1fs elapsed)", pct, elapsedSec)
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] "+format, args...)
	}
}

// Print prints a level 3 message (alias for Verbose).
func Print(format string, args ...interface{}) {
	Verbose(format, args...)
}

// Printf is an alias for Print for compatibility.
func Printf(format string, args ...interface{}) {
	Verbose(format, args...)
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] %s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Printf("  %s", name)
		logger.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Step %d: %s", num, description)
	}
}

// Ramp prints a ramp calculation result (level 3).
func Ramp(motor string, displacement, duration float64) {
	if level >= LevelVerbose && logger != nil {
		logger.Printf("[VERBOSE] Ramp %s: displacement=%.4f duration=%.4fs", motor, displacement, duration)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message (trace, register writes).
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[TRACE] "+format, args...)
	}
}

// Field prints a controller register field operation (level 4).
func Field(operation string, name string, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.Printf("[FIELD] %s %s value=%v", operation, name, value)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		logger.Printf("[ERROR] %v", err)
	}
}

// Fmt is a helper function that returns a formatted string
// only if debug is enabled (to avoid unnecessary allocations).
func Fmt(format string, args ...interface{}) string {
	if level > 0 {
		return fmt.Sprintf(format, args...)
	}
	return ""
}

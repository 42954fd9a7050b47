package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"math"
	"net/http"
	"sync"
	"time"
)

// maxRunBodyBytes caps the POST /run request body.
const maxRunBodyBytes = 1 << 20

// Overrides holds trajectory parameters that can override config defaults.
type Overrides struct {
	StartPosition   float64 `json:"start_position"`
	EndPosition     float64 `json:"end_position"`
	NumPositions    int     `json:"num_positions"`
	TimePerPosition float64 `json:"time_per_position"`
}

// ValidateOverrides checks the trajectory parameters from the run form.
func ValidateOverrides(o Overrides) error {
	for name, v := range map[string]float64{
		"start_position":    o.StartPosition,
		"end_position":      o.EndPosition,
		"time_per_position": o.TimePerPosition,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	if o.NumPositions < 1 {
		return fmt.Errorf("num_positions must be >= 1")
	}
	if o.TimePerPosition <= 0 {
		return fmt.Errorf("time_per_position must be > 0")
	}
	if o.StartPosition == o.EndPosition {
		return fmt.Errorf("start_position and end_position must differ")
	}
	return nil
}

// RunTrajectoryFunc runs a trajectory with the given overrides.
// It is called from the POST /run handler in a goroutine.
type RunTrajectoryFunc func(ctx context.Context, overrides Overrides) error

// FormConfig holds default values for the run form (from config).
type FormConfig struct {
	StartPosition   float64 `json:"start_position"`
	EndPosition     float64 `json:"end_position"`
	NumPositions    int     `json:"num_positions"`
	TimePerPosition float64 `json:"time_per_position"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster   *StatusBroadcaster
	RunTrajectory RunTrajectoryFunc
	FormDefaults  FormConfig
	runningMu     sync.Mutex
	running       bool
	staticFS      fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runTrajectory is nil, POST /run will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runTrajectory RunTrajectoryFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:   broadcaster,
		RunTrajectory: runTrajectory,
		FormDefaults:  formDefaults,
		staticFS:      staticFS,
	}
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.FormDefaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to start a trajectory.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRunBodyBytes)
	var overrides Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	if err := ValidateOverrides(overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunTrajectory == nil {
		http.Error(w, "trajectory not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "trajectory already in progress", http.StatusConflict)
		return
	}
	h.running = true
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			h.runningMu.Lock()
			h.running = false
			h.runningMu.Unlock()
		}()

		ctx := context.Background()
		if err := h.RunTrajectory(ctx, overrides); err != nil {
			h.Broadcaster.Broadcast("error", "Trajectory failed: "+err.Error())
			log.Printf("trajectory failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", "Trajectory complete")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

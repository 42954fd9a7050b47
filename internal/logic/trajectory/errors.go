package trajectory

import (
	"errors"
	"fmt"
	"time"
)

// ErrAborted is the failure cause recorded when Stop halts a running
// trajectory, letting callers tell an operator abort from a genuine fault.
var ErrAborted = errors.New("trajectory aborted by stop")

// ConfigurationError reports an axis or coordinate-system resolution failure.
// It is never retried; prepare aborts immediately.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// EmptyProfileError reports a degenerate trajectory request, rejected before
// any controller I/O takes place.
type EmptyProfileError struct {
	Reason string
}

func (e *EmptyProfileError) Error() string {
	return "empty profile: " + e.Reason
}

// UploadError reports an I/O failure while writing arrays or moving axes to
// their start positions. Partial uploads are not rolled back; the caller
// must re-prepare rather than resume.
type UploadError struct {
	Op  string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed (%s): %v", e.Op, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StateError reports an operation invoked in the wrong lifecycle state.
// This is a programming error and is always surfaced.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not valid in state %s", e.Op, e.State)
}

// TimeoutError reports that profile execution exceeded its time budget.
type TimeoutError struct {
	Elapsed time.Duration
	Budget  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution exceeded %s budget after %s", e.Budget, e.Elapsed)
}

// ProtocolViolation reports a malformed or regressing scan-percent reading.
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string {
	return "protocol violation: " + e.Reason
}

// Package msmerr defines the error kinds surfaced by lifecycle and scheduler
// operations. Callers match them with errors.Is/errors.As; the API layer maps
// them to HTTP status codes.
package msmerr

import (
	"errors"
	"fmt"
)

var (
	// ErrRuntimeNotFound means no usable Java interpreter was configured or
	// discoverable on PATH.
	ErrRuntimeNotFound = errors.New("java runtime not found")

	// ErrStopTimeout means graceful shutdown exceeded its deadline and force
	// was not requested. The server is still running; retry with force.
	ErrStopTimeout = errors.New("graceful shutdown timed out")
)

// NotFoundError indicates an unknown server or schedule id.
type NotFoundError struct {
	Kind string // "server" or "schedule"
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}

// AlreadyRunningError indicates a start was requested for a server whose
// reconciled state is already running.
type AlreadyRunningError struct {
	Name string
	PID  int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("server %q is already running (pid %d)", e.Name, e.PID)
}

// NotRunningError indicates a stop or command was requested for a server
// whose reconciled state is stopped.
type NotRunningError struct {
	Name string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("server %q is not running", e.Name)
}

// PortInUseError indicates the server's port could not be bound. BlockingPID
// is best-effort and zero when the owner could not be identified.
type PortInUseError struct {
	Port        int
	BlockingPID int
}

func (e *PortInUseError) Error() string {
	if e.BlockingPID > 0 {
		return fmt.Sprintf("port %d is in use by pid %d", e.Port, e.BlockingPID)
	}
	return fmt.Sprintf("port %d is in use", e.Port)
}

// SpawnError wraps a failure to launch the child process.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn server %q: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// InvalidScheduleError indicates a malformed cron expression or unknown
// action at schedule creation or update time.
type InvalidScheduleError struct {
	Expr   string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule %q: %s", e.Expr, e.Reason)
}

package target

import (
	"context"
	"time"
)

// Status is the running state a driver reports for a target
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusRunning  Status = "running"
	StatusStopped  Status = "stopped"
	StatusStopping Status = "stopping" // transitioning towards stopped
	StatusStarting Status = "starting" // transitioning towards running
)

// Transitioning reports whether the target is between running and stopped.
func (s Status) Transitioning() bool {
	return s == StatusStopping || s == StatusStarting
}

// NeedsRestart is true for stopped targets and targets in transition to stopped.
func (s Status) NeedsRestart() bool {
	return s == StatusStopped || s == StatusStopping
}

// RestartResult carries what the driver observed while restarting.
type RestartResult struct {
	// Confirmed is set when the driver observed the target reach running.
	Confirmed bool

	// Output and ErrorOutput hold text captured from fire-and-forget restarts.
	Output      string
	ErrorOutput string
}

// Driver queries and mutates the running state of one target.
// A driver is used by a single monitor at a time.
type Driver interface {
	// QueryStatus fails with a driver_unavailable error when the target cannot be reached.
	QueryStatus(ctx context.Context) (Status, error)

	// Restart brings the target to running. Drivers that confirm the restart block up to
	// timeout; fire-and-forget drivers return as soon as the command completes.
	Restart(ctx context.Context, timeout time.Duration) (RestartResult, error)
}

// Controller is implemented by drivers that support manual one-shot start and stop.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

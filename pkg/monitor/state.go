package monitor

import (
	"time"

	"github.com/core-tools/hsu-watchdog/pkg/target"
)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseStopping Phase = "stopping"
	PhaseStopped  Phase = "stopped" // terminal
)

type Action string

const (
	ActionNone             Action = "none"
	ActionRestartAttempted Action = "restart_attempted"
	ActionRestartSucceeded Action = "restart_succeeded"
	ActionRestartFailed    Action = "restart_failed"
)

// State is a point-in-time copy of a monitor's bookkeeping.
type State struct {
	Target     target.ID
	Phase      Phase
	LastStatus target.Status
	LastAction Action
	LastCheck  time.Time
	LastError  string

	// Restarts counts restart attempts since the monitor started.
	Restarts int
}

// InitialState is the state of a monitor that has not started yet.
func InitialState(id target.ID) State {
	return State{
		Target:     id,
		Phase:      PhaseIdle,
		LastStatus: target.StatusUnknown,
		LastAction: ActionNone,
	}
}

func newState(id target.ID) *State {
	state := InitialState(id)
	return &state
}

package useragent

import "errors"

// State is the lifecycle state of the SIP user-agent process.
type State string

const (
	StateStopped    State = "stopped"
	StateStarting   State = "starting"
	StateRegistered State = "registered"
	StateFailed     State = "failed"
)

var (
	// ErrConfig the working directory or config file could not be prepared.
	ErrConfig = errors.New("useragent config error")
	// ErrProcessStart the executable is missing or could not be launched.
	ErrProcessStart = errors.New("useragent process start failed")
	// ErrProcessCrash the process exited without being asked to.
	ErrProcessCrash = errors.New("useragent process crashed")
	// ErrControlChannelUnavailable the control channel is missing or has no reader.
	ErrControlChannelUnavailable = errors.New("useragent control channel unavailable")
)

// transitions lists the allowed state changes. Starting/Registered/Failed to
// Stopped only happen through Shutdown; Failed to Starting only through Start.
var transitions = map[State][]State{
	StateStopped:    {StateStarting},
	StateStarting:   {StateRegistered, StateFailed, StateStopped},
	StateRegistered: {StateStopped, StateFailed},
	StateFailed:     {StateStarting, StateStopped},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Gauge maps a state to a number for metrics.
func (s State) Gauge() float64 {
	switch s {
	case StateStarting:
		return 1
	case StateRegistered:
		return 2
	case StateFailed:
		return -1
	default:
		return 0
	}
}

package engine

// State is the lifecycle state of a Server.
type State int32

const (
	// StateNotStarted: Start has never been called.
	StateNotStarted State = iota
	// StateStarting: the accept goroutine is binding the listener.
	StateStarting
	// StateReady: a slot is free and the loop is (about to be) blocked in Accept.
	StateReady
	// StateBusy: every slot is taken; the loop waits for a completion.
	StateBusy
	// StateShuttingDown: Stop was requested while the loop was still alive.
	StateShuttingDown
	// StateStopped: the accept loop has exited. Start may be called again.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Accepting reports whether the state is one in which the loop is serving
// admission (Ready or Busy).
func (s State) Accepting() bool {
	return s == StateReady || s == StateBusy
}

package server

// State represents the lifecycle state of a Server.
type State int

const (
	// StateInitialized means the server is created but not started.
	StateInitialized State = iota

	// StateStarting means Start() is binding listeners.
	StateStarting

	// StateRunning means the server accepts connections.
	StateRunning

	// StateStopping means Stop() is closing listeners and connections.
	StateStopping

	// StateStopped means the server has been shut down. It cannot be restarted.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// IsRunning returns true if the server accepts connections.
func (s State) IsRunning() bool {
	return s == StateRunning
}

// CanStart returns true if Start() can be called in this state.
func (s State) CanStart() bool {
	return s == StateInitialized
}

// CanStop returns true if Stop() can be called in this state.
func (s State) CanStop() bool {
	return s == StateRunning || s == StateStarting
}

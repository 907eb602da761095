package software

// OutputState is the lifecycle state of an output.
type OutputState int

const (
	OutputStateStopped OutputState = iota
	OutputStateStarting
	OutputStateActive
	OutputStateStopping
)

// String returns the wire name of the state, as the web client expects it.
func (s OutputState) String() string {
	switch s {
	case OutputStateStopped:
		return "stopped"
	case OutputStateStarting:
		return "starting"
	case OutputStateActive:
		return "active"
	case OutputStateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// IsValid returns true if the state is one of the defined values.
func (s OutputState) IsValid() bool {
	return s >= OutputStateStopped && s <= OutputStateStopping
}

// ParseOutputState parses a wire name produced by OutputState.String.
func ParseOutputState(s string) (OutputState, error) {
	for st := OutputStateStopped; st <= OutputStateStopping; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, ErrInvalidOutputState
}

// OutputType distinguishes local recordings from remote streams.
type OutputType int

const (
	OutputTypeLocalRecording OutputType = iota
	OutputTypeRemoteStream
)

// String returns the wire name of the type.
func (t OutputType) String() string {
	switch t {
	case OutputTypeLocalRecording:
		return "local_recording"
	case OutputTypeRemoteStream:
		return "remote_stream"
	default:
		return "unknown"
	}
}

// ParseOutputType parses a wire name produced by OutputType.String.
func ParseOutputType(s string) (OutputType, error) {
	switch s {
	case "local_recording":
		return OutputTypeLocalRecording, nil
	case "remote_stream":
		return OutputTypeRemoteStream, nil
	default:
		return 0, ErrInvalidOutputType
	}
}

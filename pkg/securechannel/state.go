package securechannel

// State is the handshake state of a Session or Initiator.
type State int

const (
	// StateUninitialized is the initial state of both sides.
	StateUninitialized State = iota
	// StateAwaitingServerHello: initiator sent ClientHello.
	StateAwaitingServerHello
	// StateAwaitingClientConfirmation: server sent ServerHello.
	StateAwaitingClientConfirmation
	// StateAuthenticated: both stream directions are set up.
	StateAuthenticated
	// StateClosed: key material has been wiped.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateAwaitingServerHello:
		return "AwaitingServerHello"
	case StateAwaitingClientConfirmation:
		return "AwaitingClientConfirmation"
	case StateAuthenticated:
		return "Authenticated"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

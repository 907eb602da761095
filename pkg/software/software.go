package software

// Default listener ports.
const (
	DefaultTCPPort       = 9001
	DefaultWebSocketPort = 9002
)

// Config is the remote-control configuration held by the streaming software.
type Config struct {
	// Password is shared with clients and protects the handshake.
	Password string

	// TCPPort is the port of the length-prefixed TCP listener.
	TCPPort int

	// WebSocketPort is the port of the WebSocket listener.
	WebSocketPort int
}

// Output is a recording or streaming endpoint.
type Output struct {
	ID           string
	Name         string
	Type         OutputType
	State        OutputState
	DelaySeconds int64
}

// Events holds the callbacks a subscriber wants invoked. Nil fields are skipped.
// Callbacks run on the goroutine that caused the event and must not block.
type Events struct {
	// OnOutputStateChanged is called after an output changed state.
	OnOutputStateChanged func(id string, state OutputState)

	// OnInitialized is called with the configuration once the software is ready,
	// and again whenever the configuration changes.
	OnInitialized func(config Config)
}

// Software is the capability the remote-control server calls into.
type Software interface {
	// Configuration returns the current configuration.
	Configuration() Config

	// Outputs returns a snapshot of all outputs.
	Outputs() []Output

	// StartOutput asks the software to start an output. Progress is reported
	// through OnOutputStateChanged.
	StartOutput(id string)

	// StopOutput asks the software to stop an output.
	StopOutput(id string)

	// SetOutputDelay sets the output delay and reports whether it was applied.
	SetOutputDelay(id string, seconds int64) bool

	// Subscribe registers callbacks. The returned function removes them.
	Subscribe(events Events) (unsubscribe func())
}

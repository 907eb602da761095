package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport
	// or connection.
	ErrClosed = errors.New("transport: closed")

	// ErrNoHandler is returned when a transport is started without a handler.
	ErrNoHandler = errors.New("transport: no handler configured")

	// ErrNotStarted is returned when an operation requires a started transport.
	ErrNotStarted = errors.New("transport: not started")

	// ErrAlreadyStarted is returned when Start is called on an already running transport.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrMessageTooLarge is returned when a message exceeds MaxMessageSize.
	ErrMessageTooLarge = errors.New("transport: message too large")

	// ErrInvalidLength is returned when a stream frame announces a zero length.
	ErrInvalidLength = errors.New("transport: invalid length prefix")

	// ErrStreamReadFailed is returned when a frame is cut short.
	ErrStreamReadFailed = errors.New("transport: stream read failed")

	// ErrUnsupportedScheme is returned by Dial for an unknown address scheme.
	ErrUnsupportedScheme = errors.New("transport: unsupported address scheme")

	// ErrNoTransports is returned when a manager would have nothing to run.
	ErrNoTransports = errors.New("transport: no transports enabled")
)

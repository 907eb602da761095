package transport

// TransportType identifies the transport a connection arrived on.
type TransportType int

const (
	// TransportTypeUnknown is the zero value for unknown transport.
	TransportTypeUnknown TransportType = iota
	// TransportTypeTCP is a length-prefixed TCP stream.
	TransportTypeTCP
	// TransportTypeWebSocket carries one message per binary WebSocket frame.
	TransportTypeWebSocket
	// TransportTypePipe is an in-memory connection.
	TransportTypePipe
)

// String returns the string representation of the transport type.
func (t TransportType) String() string {
	switch t {
	case TransportTypeTCP:
		return "TCP"
	case TransportTypeWebSocket:
		return "WebSocket"
	case TransportTypePipe:
		return "Pipe"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the transport type is a known valid type.
func (t TransportType) IsValid() bool {
	return t >= TransportTypeTCP && t <= TransportTypePipe
}

package server

import (
	"time"

	"github.com/backkem/streamremote/pkg/discovery"
	"github.com/backkem/streamremote/pkg/software"
	"github.com/backkem/streamremote/pkg/transport"
	"github.com/pion/logging"
)

// Defaults applied to a zero Config.
const (
	// DefaultHandshakeTimeout bounds the time from connect to Authenticated.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultMaxConnections limits concurrent connections.
	DefaultMaxConnections = 64
)

// Config holds all configuration for a Server. Ports and password are not
// part of it: they are read from Software.Configuration().
type Config struct {
	// Software is the streaming application being controlled. Required.
	Software software.Software

	// Network
	Host             string // Listen host (default: all interfaces)
	DisableTCP       bool   // Do not open the length-prefixed TCP listener
	DisableWebSocket bool   // Do not open the WebSocket listener
	WebSocketPath    string // HTTP path of the WebSocket endpoint (default: "/")

	// HandshakeTimeout tears down connections that have not authenticated in
	// time. Zero uses DefaultHandshakeTimeout, negative disables the deadline.
	HandshakeTimeout time.Duration

	// MaxConnections limits concurrent connections (default: 64).
	MaxConnections int

	// Discovery
	Advertise         bool                        // Publish a _streamremote._tcp service
	InstanceName      string                      // DNS-SD instance name (default: random)
	MDNSServerFactory discovery.MDNSServerFactory // For testing

	// Transports are served in addition to the TCP and WebSocket listeners,
	// for example a transport.PipeTransport in tests.
	Transports []transport.Transport

	LoggerFactory logging.LoggerFactory
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Software == nil {
		return ErrNoSoftware
	}
	if c.DisableTCP && c.DisableWebSocket && len(c.Transports) == 0 {
		return ErrNoTransports
	}
	return nil
}

// applyDefaults fills in default values for unset fields.
func (c *Config) applyDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.WebSocketPath == "" {
		c.WebSocketPath = transport.DefaultWebSocketPath
	}
}

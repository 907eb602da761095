package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/pion/logging"
)

// Manager runs the TCP and WebSocket listeners, plus any additional
// transports, against a single Handler.
type Manager struct {
	config  ManagerConfig
	handler Handler

	mu      sync.RWMutex
	tcp     *TCP
	ws      *WebSocket
	tcpPort int
	wsPort  int
	started bool
	closed  bool
}

// ManagerConfig configures the transport manager.
type ManagerConfig struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string

	// TCPPort is the TCP listener port. Zero picks an ephemeral port.
	TCPPort int

	// WebSocketPort is the WebSocket listener port. Zero picks an ephemeral port.
	WebSocketPort int

	// DisableTCP turns the TCP listener off.
	DisableTCP bool

	// DisableWebSocket turns the WebSocket listener off.
	DisableWebSocket bool

	// TCPListener is an optional pre-existing TCP listener for testing.
	TCPListener net.Listener

	// WebSocketListener is an optional pre-existing listener for testing.
	WebSocketListener net.Listener

	// WebSocketPath is the upgrade path. Default: "/".
	WebSocketPath string

	// Transports are started and stopped along with the listeners.
	Transports []Transport

	// Handler receives the events of every transport.
	// Required.
	Handler Handler

	// LoggerFactory is the factory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// NewManager creates the listeners. Ports are bound immediately so that
// address conflicts surface here.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}
	if config.DisableTCP && config.DisableWebSocket && len(config.Transports) == 0 {
		return nil, ErrNoTransports
	}

	m := &Manager{
		config:  config,
		handler: config.Handler,
		tcpPort: config.TCPPort,
		wsPort:  config.WebSocketPort,
	}

	if !config.DisableTCP {
		tcp, err := m.newTCP(config.TCPPort, config.TCPListener)
		if err != nil {
			return nil, fmt.Errorf("creating TCP transport: %w", err)
		}
		m.tcp = tcp
	}

	if !config.DisableWebSocket {
		ws, err := m.newWebSocket(config.WebSocketPort, config.WebSocketListener)
		if err != nil {
			if m.tcp != nil {
				m.tcp.Stop()
			}
			return nil, fmt.Errorf("creating WebSocket transport: %w", err)
		}
		m.ws = ws
	}

	return m, nil
}

func (m *Manager) listenAddr(port int) string {
	return net.JoinHostPort(m.config.Host, strconv.Itoa(port))
}

func (m *Manager) newTCP(port int, listener net.Listener) (*TCP, error) {
	return NewTCP(TCPConfig{
		Listener:      listener,
		ListenAddr:    m.listenAddr(port),
		LoggerFactory: m.config.LoggerFactory,
	})
}

func (m *Manager) newWebSocket(port int, listener net.Listener) (*WebSocket, error) {
	return NewWebSocket(WebSocketConfig{
		Listener:      listener,
		ListenAddr:    m.listenAddr(port),
		Path:          m.config.WebSocketPath,
		LoggerFactory: m.config.LoggerFactory,
	})
}

// transports returns every transport in start order. Caller holds m.mu.
func (m *Manager) transports() []Transport {
	var ts []Transport
	if m.tcp != nil {
		ts = append(ts, m.tcp)
	}
	if m.ws != nil {
		ts = append(ts, m.ws)
	}
	return append(ts, m.config.Transports...)
}

// Start starts every transport. On failure the ones already started are
// stopped again.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}

	ts := m.transports()
	for i, t := range ts {
		if err := t.Start(m.handler); err != nil {
			for _, started := range ts[:i] {
				started.Stop()
			}
			return fmt.Errorf("starting %s transport: %w", t.Type(), err)
		}
	}

	m.started = true
	return nil
}

// Stop closes all transports and their connections.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.closed = true
	ts := m.transports()
	m.mu.Unlock()

	var errs []error
	for _, t := range ts {
		if err := t.Stop(); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, fmt.Errorf("stopping %s: %w", t.Type(), err))
		}
	}
	return errors.Join(errs...)
}

// SetPorts moves the listeners whose port changed. The new listener is bound
// and started before the old one is stopped, which drops the connections
// that arrived on the old port. Unchanged listeners keep their connections.
func (m *Manager) SetPorts(tcpPort, webSocketPort int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if m.tcp != nil && tcpPort != m.tcpPort {
		tcp, err := m.newTCP(tcpPort, nil)
		if err != nil {
			return fmt.Errorf("creating TCP transport: %w", err)
		}
		if m.started {
			if err := tcp.Start(m.handler); err != nil {
				tcp.Stop()
				return err
			}
		}
		old := m.tcp
		m.tcp, m.tcpPort = tcp, tcpPort
		old.Stop()
	}

	if m.ws != nil && webSocketPort != m.wsPort {
		ws, err := m.newWebSocket(webSocketPort, nil)
		if err != nil {
			return fmt.Errorf("creating WebSocket transport: %w", err)
		}
		if m.started {
			if err := ws.Start(m.handler); err != nil {
				ws.Stop()
				return err
			}
		}
		old := m.ws
		m.ws, m.wsPort = ws, webSocketPort
		old.Stop()
	}

	return nil
}

// TCP returns the TCP transport, or nil if disabled.
func (m *Manager) TCP() *TCP {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tcp
}

// WebSocket returns the WebSocket transport, or nil if disabled.
func (m *Manager) WebSocket() *WebSocket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ws
}

// LocalAddresses returns the address of every transport.
func (m *Manager) LocalAddresses() []net.Addr {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var addrs []net.Addr
	for _, t := range m.transports() {
		addrs = append(addrs, t.LocalAddr())
	}
	return addrs
}

// Port returns the bound port of a listener, or 0 if it is disabled.
func (m *Manager) Port(tt TransportType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var addr net.Addr
	switch tt {
	case TransportTypeTCP:
		if m.tcp != nil {
			addr = m.tcp.LocalAddr()
		}
	case TransportTypeWebSocket:
		if m.ws != nil {
			addr = m.ws.LocalAddr()
		}
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}

package transport

import (
	"errors"
	"net"
	"sync"

	"github.com/pion/logging"
)

// TCP accepts TCP connections and frames messages with a 4-byte
// little-endian length prefix.
type TCP struct {
	listener net.Listener
	handler  Handler
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	connsMu sync.Mutex
	conns   map[ConnID]*tcpConn

	mu      sync.RWMutex
	started bool
	closed  bool
}

// TCPConfig configures the TCP transport.
type TCPConfig struct {
	// Listener is an optional pre-existing Listener to use.
	// If nil, a new listener will be created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":9001").
	// Ignored if Listener is provided.
	ListenAddr string

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewTCP creates a new TCP transport and binds its listener.
func NewTCP(config TCPConfig) (*TCP, error) {
	t := &TCP{
		listener: config.Listener,
		closeCh:  make(chan struct{}),
		conns:    make(map[ConnID]*tcpConn),
	}

	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("tcp")
	}

	if t.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		t.listener = listener
	}

	return t, nil
}

// Type implements Transport.
func (t *TCP) Type() TransportType {
	return TransportTypeTCP
}

// Start begins accepting connections.
func (t *TCP) Start(handler Handler) error {
	if handler == nil {
		return ErrNoHandler
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.handler = handler
	t.wg.Add(1)
	t.mu.Unlock()

	if t.log != nil {
		t.log.Infof("starting TCP transport on %s", t.listener.Addr())
	}

	go t.acceptLoop()
	return nil
}

// Stop closes the listener and all connections.
func (t *TCP) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	if t.log != nil {
		t.log.Info("stopping TCP transport")
	}

	close(t.closeCh)
	t.listener.Close()

	t.connsMu.Lock()
	for _, tc := range t.conns {
		tc.conn.Close()
	}
	t.connsMu.Unlock()

	t.wg.Wait()
	return nil
}

// LocalAddr returns the address the listener is bound to.
func (t *TCP) LocalAddr() net.Addr {
	return t.listener.Addr()
}

// ConnectionCount returns the number of open connections.
func (t *TCP) ConnectionCount() int {
	t.connsMu.Lock()
	defer t.connsMu.Unlock()
	return len(t.conns)
}

// AddConnection serves an already established connection, as if it had been
// accepted. This is useful for testing with net.Pipe().
func (t *TCP) AddConnection(conn net.Conn) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		conn.Close()
		return ErrClosed
	}
	if !t.started {
		return ErrNotStarted
	}

	t.wg.Add(1)
	go t.handleConn(conn)
	return nil
}

func (t *TCP) acceptLoop() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			select {
			case <-t.closeCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if t.log != nil {
				t.log.Warnf("accept failed: %v", err)
			}
			continue
		}

		if err := t.AddConnection(conn); err != nil {
			return
		}
	}
}

func (t *TCP) handleConn(conn net.Conn) {
	defer t.wg.Done()

	tc := &tcpConn{
		id:     nextConnID(),
		conn:   conn,
		reader: NewStreamReader(conn),
		writer: NewStreamWriter(conn),
	}

	t.connsMu.Lock()
	t.conns[tc.id] = tc
	t.connsMu.Unlock()

	// Stop may have swept the table before the entry was added.
	select {
	case <-t.closeCh:
		conn.Close()
	default:
	}

	if t.log != nil {
		t.log.Debugf("%s accepted from %s", tc.id, conn.RemoteAddr())
	}

	defer func() {
		conn.Close()
		t.connsMu.Lock()
		delete(t.conns, tc.id)
		t.connsMu.Unlock()
		if t.log != nil {
			t.log.Debugf("%s closed", tc.id)
		}
	}()

	serve(t.handler, tc, tc.reader.ReadMessage)
}

// tcpConn wraps a TCP connection with framing support.
type tcpConn struct {
	id     ConnID
	conn   net.Conn
	reader *StreamReader
	writer *StreamWriter
	mu     sync.Mutex // Protects writes
}

func (c *tcpConn) ID() ConnID           { return c.id }
func (c *tcpConn) Type() TransportType  { return TransportTypeTCP }
func (c *tcpConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
func (c *tcpConn) Close() error         { return c.conn.Close() }

func (c *tcpConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer.WriteMessage(data)
}

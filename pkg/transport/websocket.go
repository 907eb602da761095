package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/logging"
)

// DefaultWebSocketPath is the HTTP path upgraded to WebSocket.
const DefaultWebSocketPath = "/"

// WebSocket accepts WebSocket connections. Each data frame carries one
// message. Binary frames are sent; text frames are accepted on receive.
type WebSocket struct {
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	path     string
	handler  Handler
	closeCh  chan struct{}
	wg       sync.WaitGroup
	log      logging.LeveledLogger

	connsMu sync.Mutex
	conns   map[ConnID]*wsConn

	mu      sync.RWMutex
	started bool
	closed  bool
}

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	// Listener is an optional pre-existing Listener to use.
	// If nil, a new listener will be created using ListenAddr.
	Listener net.Listener

	// ListenAddr is the address to listen on (e.g., ":9002").
	ListenAddr string

	// Path is the upgrade path. Default: "/".
	Path string

	// CheckOrigin filters browser origins. Nil accepts every origin, since
	// the handshake password is what authorizes a client.
	CheckOrigin func(r *http.Request) bool

	// LoggerFactory is the factory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// NewWebSocket creates a new WebSocket transport and binds its listener.
func NewWebSocket(config WebSocketConfig) (*WebSocket, error) {
	w := &WebSocket{
		listener: config.Listener,
		path:     config.Path,
		closeCh:  make(chan struct{}),
		conns:    make(map[ConnID]*wsConn),
	}
	if w.path == "" {
		w.path = DefaultWebSocketPath
	}

	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	w.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}

	if config.LoggerFactory != nil {
		w.log = config.LoggerFactory.NewLogger("websocket")
	}

	if w.listener == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		w.listener = listener
	}

	return w, nil
}

// Type implements Transport.
func (w *WebSocket) Type() TransportType {
	return TransportTypeWebSocket
}

// Start begins serving upgrade requests.
func (w *WebSocket) Start(handler Handler) error {
	if handler == nil {
		return ErrNoHandler
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.started {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.started = true
	w.handler = handler

	mux := http.NewServeMux()
	mux.HandleFunc(w.path, w.serveHTTP)
	w.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	w.wg.Add(1)
	w.mu.Unlock()

	if w.log != nil {
		w.log.Infof("starting WebSocket transport on %s%s", w.listener.Addr(), w.path)
	}

	go func() {
		defer w.wg.Done()
		err := w.server.Serve(w.listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && w.log != nil {
			w.log.Warnf("serve failed: %v", err)
		}
	}()
	return nil
}

// Stop closes the listener and all connections.
func (w *WebSocket) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.closed = true
	server := w.server
	w.mu.Unlock()

	if w.log != nil {
		w.log.Info("stopping WebSocket transport")
	}

	close(w.closeCh)
	if server != nil {
		// Hijacked connections are not tracked by the server.
		server.Close()
	} else {
		w.listener.Close()
	}

	w.connsMu.Lock()
	for _, c := range w.conns {
		c.conn.Close()
	}
	w.connsMu.Unlock()

	w.wg.Wait()
	return nil
}

// LocalAddr returns the address the listener is bound to.
func (w *WebSocket) LocalAddr() net.Addr {
	return w.listener.Addr()
}

// ConnectionCount returns the number of open connections.
func (w *WebSocket) ConnectionCount() int {
	w.connsMu.Lock()
	defer w.connsMu.Unlock()
	return len(w.conns)
}

func (w *WebSocket) serveHTTP(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		http.Error(rw, "shutting down", http.StatusServiceUnavailable)
		return
	}
	w.wg.Add(1)
	w.mu.RUnlock()
	defer w.wg.Done()

	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		if w.log != nil {
			w.log.Debugf("upgrade from %s failed: %v", r.RemoteAddr, err)
		}
		return
	}
	conn.SetReadLimit(MaxMessageSize)

	wc := &wsConn{
		id:   nextConnID(),
		conn: conn,
	}

	w.connsMu.Lock()
	w.conns[wc.id] = wc
	w.connsMu.Unlock()

	select {
	case <-w.closeCh:
		conn.Close()
	default:
	}

	if w.log != nil {
		w.log.Debugf("%s accepted from %s", wc.id, conn.RemoteAddr())
	}

	defer func() {
		conn.Close()
		w.connsMu.Lock()
		delete(w.conns, wc.id)
		w.connsMu.Unlock()
		if w.log != nil {
			w.log.Debugf("%s closed", wc.id)
		}
	}()

	serve(w.handler, wc, wc.read)
}

// wsConn is a server-side WebSocket connection.
type wsConn struct {
	id   ConnID
	conn *websocket.Conn
	mu   sync.Mutex // gorilla allows one concurrent writer
}

func (c *wsConn) ID() ConnID           { return c.id }
func (c *wsConn) Type() TransportType  { return TransportTypeWebSocket }
func (c *wsConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
func (c *wsConn) Close() error         { return c.conn.Close() }

func (c *wsConn) Send(data []byte) error {
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsConn) read() ([]byte, error) {
	return readWebSocketMessage(c.conn)
}

// readWebSocketMessage returns the next data frame. Control frames are
// handled by the library.
func readWebSocketMessage(conn *websocket.Conn) ([]byte, error) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if mt == websocket.BinaryMessage || mt == websocket.TextMessage {
			return data, nil
		}
	}
}

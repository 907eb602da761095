package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Dial connects to a server. Addresses starting with ws:// or wss:// use
// WebSocket; tcp://host:port and bare host:port use TCP.
func Dial(ctx context.Context, address string) (ClientConn, error) {
	switch {
	case strings.HasPrefix(address, "ws://"), strings.HasPrefix(address, "wss://"):
		return DialWebSocket(ctx, address)
	case strings.HasPrefix(address, "tcp://"):
		return DialTCP(ctx, strings.TrimPrefix(address, "tcp://"))
	case strings.Contains(address, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, address)
	default:
		return DialTCP(ctx, address)
	}
}

// DialTCP opens a length-prefixed TCP connection.
func DialTCP(ctx context.Context, address string) (ClientConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return newStreamClientConn(conn), nil
}

// NewStreamClientConn wraps an established stream connection, such as one end
// of net.Pipe, with length-prefix framing.
func NewStreamClientConn(conn net.Conn) ClientConn {
	return newStreamClientConn(conn)
}

func newStreamClientConn(conn net.Conn) *streamClientConn {
	return &streamClientConn{
		conn:   conn,
		reader: NewStreamReader(conn),
		writer: NewStreamWriter(conn),
	}
}

type streamClientConn struct {
	conn   net.Conn
	reader *StreamReader
	writer *StreamWriter
	mu     sync.Mutex
}

func (c *streamClientConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writer.WriteMessage(data)
}

func (c *streamClientConn) Receive() ([]byte, error) {
	return c.reader.ReadMessage()
}

func (c *streamClientConn) Close() error {
	return c.conn.Close()
}

// DialWebSocket opens a WebSocket connection to url.
func DialWebSocket(ctx context.Context, url string) (ClientConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(MaxMessageSize)
	return &wsClientConn{conn: conn}, nil
}

type wsClientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClientConn) Send(data []byte) error {
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *wsClientConn) Receive() ([]byte, error) {
	return readWebSocketMessage(c.conn)
}

func (c *wsClientConn) Close() error {
	return c.conn.Close()
}

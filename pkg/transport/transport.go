package transport

import (
	"net"
	"strconv"
	"sync/atomic"
)

// ConnID identifies a connection. IDs are unique across all transports of a
// process and never reused.
type ConnID uint64

func (id ConnID) String() string {
	return "conn-" + strconv.FormatUint(uint64(id), 10)
}

var lastConnID atomic.Uint64

func nextConnID() ConnID {
	return ConnID(lastConnID.Add(1))
}

// Conn is a message-oriented connection accepted by a Transport. Every Send
// delivers exactly one message to the peer, in call order.
type Conn interface {
	ID() ConnID
	Type() TransportType
	RemoteAddr() net.Addr

	// Send writes one message. It is safe for concurrent use.
	Send(data []byte) error

	// Close closes the connection. The owning transport reports the
	// disconnect to its Handler.
	Close() error
}

// Handler receives connection events from a Transport.
//
// For a given connection the calls are made from a single goroutine:
// HandleConnect first, then HandleMessage for every message in arrival order,
// then HandleDisconnect exactly once. Different connections are served
// concurrently.
type Handler interface {
	HandleConnect(conn Conn)
	HandleMessage(conn Conn, data []byte)
	HandleDisconnect(conn Conn)
}

// Transport accepts connections and feeds them to a Handler.
type Transport interface {
	Type() TransportType

	// Start begins accepting connections.
	Start(handler Handler) error

	// Stop closes the listener and every open connection, and waits for the
	// connection goroutines to finish.
	Stop() error

	// LocalAddr returns the address the transport accepts connections on.
	LocalAddr() net.Addr
}

// ClientConn is the dialing side of a connection.
type ClientConn interface {
	// Send writes one message.
	Send(data []byte) error

	// Receive blocks until the next message arrives.
	Receive() ([]byte, error)

	Close() error
}

// serve runs the per-connection event sequence. read returns the next message
// and fails once the connection is gone.
func serve(h Handler, conn Conn, read func() ([]byte, error)) {
	h.HandleConnect(conn)
	defer h.HandleDisconnect(conn)

	for {
		data, err := read()
		if err != nil {
			return
		}
		h.HandleMessage(conn, data)
	}
}

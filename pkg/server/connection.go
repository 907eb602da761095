package server

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/backkem/streamremote/pkg/rpc"
	"github.com/backkem/streamremote/pkg/securechannel"
	"github.com/backkem/streamremote/pkg/transport"
)

// Connection is one client of the server: a transport connection and the
// secure session running over it.
type Connection struct {
	conn       transport.Conn
	session    *securechannel.Session
	dispatcher *rpc.Dispatcher
	created    time.Time

	// mu orders encrypted sends: ciphertexts leave in the order they were
	// produced.
	mu            sync.Mutex
	authenticated bool
	closed        bool
	timer         *time.Timer
}

func newConnection(conn transport.Conn, password string, dispatcher *rpc.Dispatcher) *Connection {
	return &Connection{
		conn:       conn,
		session:    securechannel.NewSession([]byte(password)),
		dispatcher: dispatcher,
		created:    time.Now(),
	}
}

// ID returns the transport connection ID.
func (c *Connection) ID() transport.ConnID {
	return c.conn.ID()
}

// Transport returns the type of transport the client connected over.
func (c *Connection) Transport() transport.TransportType {
	return c.conn.Type()
}

// RemoteAddr returns the client address.
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// ConnectedAt returns when the connection was accepted.
func (c *Connection) ConnectedAt() time.Time {
	return c.created
}

// State returns the handshake state.
func (c *Connection) State() securechannel.State {
	return c.session.State()
}

// Authenticated reports whether the handshake completed and the greeting was
// sent.
func (c *Connection) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// handle processes one message from the peer. An error means the connection
// must be torn down without a reply.
func (c *Connection) handle(data []byte) error {
	res, err := c.session.HandleMessage(data)
	if err != nil {
		return err
	}

	switch {
	case res.Reply != nil:
		return c.sendRaw(res.Reply)
	case res.Established:
		return c.greet()
	}

	reply, err := c.dispatcher.Dispatch(res.Plaintext)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	return c.send(reply)
}

func (c *Connection) sendRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}
	return c.conn.Send(data)
}

// greet sends the hello notification and opens the connection to broadcasts.
func (c *Connection) greet() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if err := c.sendLocked(rpc.Hello()); err != nil {
		return err
	}
	c.authenticated = true
	return nil
}

// send encrypts and sends an application message. Before authentication it
// does nothing.
func (c *Connection) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}
	return c.sendLocked(payload)
}

// notify sends a broadcast payload if the connection is authenticated.
func (c *Connection) notify(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || !c.authenticated {
		return nil
	}
	return c.sendLocked(payload)
}

func (c *Connection) sendLocked(payload []byte) error {
	ciphertext, err := c.session.Encrypt(payload)
	if errors.Is(err, securechannel.ErrNotEstablished) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.conn.Send(ciphertext)
}

// setDeadline arms the handshake timer. onExpire runs on its own goroutine if
// the connection is still unauthenticated when it fires.
func (c *Connection) setDeadline(d time.Duration, onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.authenticated {
		return
	}
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		expired := !c.closed && !c.authenticated
		c.mu.Unlock()
		if expired {
			onExpire()
		}
	})
}

// close wipes the session and closes the transport connection. It is safe
// to call more than once.
func (c *Connection) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.authenticated = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	c.session.Close()
	c.conn.Close()
}

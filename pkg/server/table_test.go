package server

import (
	"net"
	"sync"
	"testing"

	"github.com/backkem/streamremote/pkg/transport"
)

// fakeConn is a transport.Conn that records what it was asked to do.
type fakeConn struct {
	id transport.ConnID

	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *fakeConn) ID() transport.ConnID          { return c.id }
func (c *fakeConn) Type() transport.TransportType { return transport.TransportTypePipe }
func (c *fakeConn) RemoteAddr() net.Addr          { return transport.PipeAddr{ID: int(c.id)} }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newFakeConnection(id transport.ConnID) (*Connection, *fakeConn) {
	fc := &fakeConn{id: id}
	return newConnection(fc, "pw", nil), fc
}

func TestTable(t *testing.T) {
	table := NewTable(2)
	if table.MaxConnections() != 2 {
		t.Errorf("MaxConnections() = %d, want 2", table.MaxConnections())
	}

	c7, _ := newFakeConnection(7)
	c3, _ := newFakeConnection(3)
	c9, _ := newFakeConnection(9)

	if err := table.Add(c7); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := table.Add(c7); err != ErrDuplicateConnection {
		t.Errorf("Add() duplicate error = %v, want %v", err, ErrDuplicateConnection)
	}
	if err := table.Add(c3); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !table.IsFull() {
		t.Error("IsFull() = false at capacity")
	}
	if err := table.Add(c9); err != ErrTableFull {
		t.Errorf("Add() over capacity error = %v, want %v", err, ErrTableFull)
	}

	snap := table.Snapshot()
	if len(snap) != 2 || snap[0] != c3 || snap[1] != c7 {
		t.Errorf("Snapshot() not ordered by ID")
	}

	if table.Find(7) != c7 {
		t.Error("Find(7) did not return the connection")
	}
	if got := table.Remove(7); got != c7 {
		t.Error("Remove(7) did not return the connection")
	}
	if got := table.Remove(7); got != nil {
		t.Error("second Remove(7) returned a connection")
	}
	if table.Find(7) != nil {
		t.Error("Find(7) after Remove returned a connection")
	}
	if table.Count() != 1 {
		t.Errorf("Count() = %d, want 1", table.Count())
	}

	all := table.RemoveAll()
	if len(all) != 1 || all[0] != c3 {
		t.Errorf("RemoveAll() = %v", all)
	}
	if table.Count() != 0 {
		t.Errorf("Count() after RemoveAll = %d, want 0", table.Count())
	}
}

func TestNewTableDefault(t *testing.T) {
	if got := NewTable(0).MaxConnections(); got != DefaultMaxConnections {
		t.Errorf("MaxConnections() = %d, want %d", got, DefaultMaxConnections)
	}
}

func TestConnectionClose(t *testing.T) {
	c, fc := newFakeConnection(1)

	// Nothing is sent before the handshake completes.
	if err := c.send([]byte(`{}`)); err != nil {
		t.Errorf("send() before authentication error = %v", err)
	}
	if err := c.notify([]byte(`{}`)); err != nil {
		t.Errorf("notify() before authentication error = %v", err)
	}
	if len(fc.sent) != 0 {
		t.Errorf("%d messages sent before authentication", len(fc.sent))
	}

	c.close()
	c.close()
	if !fc.isClosed() {
		t.Error("transport connection not closed")
	}
	if c.State().String() != "Closed" {
		t.Errorf("State() = %v, want Closed", c.State())
	}
	if err := c.sendRaw([]byte("x")); err != errConnectionClosed {
		t.Errorf("sendRaw() after close error = %v, want %v", err, errConnectionClosed)
	}
	if _, err := c.session.HandleMessage(make([]byte, 88)); err == nil {
		t.Error("session accepted a message after close")
	}
}

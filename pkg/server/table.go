package server

import (
	"sort"
	"sync"

	"github.com/backkem/streamremote/pkg/transport"
)

// Table is the registry of live connections, keyed by transport connection ID.
type Table struct {
	conns          map[transport.ConnID]*Connection
	maxConnections int

	mu sync.RWMutex
}

// NewTable creates a new connection table.
// maxConnections limits the number of concurrent connections (0 uses DefaultMaxConnections).
func NewTable(maxConnections int) *Table {
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}
	return &Table{
		conns:          make(map[transport.ConnID]*Connection),
		maxConnections: maxConnections,
	}
}

// Add registers a connection.
func (t *Table) Add(c *Connection) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.conns) >= t.maxConnections {
		return ErrTableFull
	}
	if _, exists := t.conns[c.ID()]; exists {
		return ErrDuplicateConnection
	}
	t.conns[c.ID()] = c
	return nil
}

// Remove unregisters a connection and returns it, or nil if it was not
// registered. Only the first of concurrent Remove calls gets the connection.
func (t *Table) Remove(id transport.ConnID) *Connection {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.conns[id]
	delete(t.conns, id)
	return c
}

// Find looks up a connection by ID. Returns nil if not found.
func (t *Table) Find(id transport.ConnID) *Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conns[id]
}

// Count returns the number of registered connections.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// IsFull returns true if no more connections can be added.
func (t *Table) IsFull() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns) >= t.maxConnections
}

// MaxConnections returns the connection limit.
func (t *Table) MaxConnections() int {
	return t.maxConnections
}

// Snapshot returns the registered connections ordered by ID.
func (t *Table) Snapshot() []*Connection {
	t.mu.RLock()
	out := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// RemoveAll empties the table and returns what it held.
func (t *Table) RemoveAll() []*Connection {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c)
	}
	t.conns = make(map[transport.ConnID]*Connection)
	return out
}

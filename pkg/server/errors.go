package server

import "errors"

// Package-level errors.
var (
	// ErrNoSoftware is returned when Config.Software is nil.
	ErrNoSoftware = errors.New("server: software is required")

	// ErrNoTransports is returned when every transport is disabled.
	ErrNoTransports = errors.New("server: no transport enabled")

	// ErrAlreadyStarted is returned when Start() is called on a running server.
	ErrAlreadyStarted = errors.New("server: already started")

	// ErrNotStarted is returned when Stop() is called before Start().
	ErrNotStarted = errors.New("server: not started")

	// ErrAlreadyStopped is returned when Stop() is called on a stopped server.
	ErrAlreadyStopped = errors.New("server: already stopped")

	// ErrTableFull is returned when the connection limit is reached.
	ErrTableFull = errors.New("server: connection table full")

	// ErrDuplicateConnection is returned when a connection ID is already registered.
	ErrDuplicateConnection = errors.New("server: duplicate connection")

	// ErrHandshakeTimeout is the teardown reason for connections that did not
	// authenticate in time.
	ErrHandshakeTimeout = errors.New("server: handshake timed out")

	// errConnectionClosed is returned when sending on a torn down connection.
	errConnectionClosed = errors.New("server: connection closed")
)

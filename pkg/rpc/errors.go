package rpc

import (
	"errors"
	"fmt"
)

// Package-level sentinel errors. Dispatch returns errors wrapping ErrProtocol
// for payloads that must close the connection.
var (
	// ErrProtocol is the parent of all fatal protocol errors.
	ErrProtocol = errors.New("rpc: protocol error")

	// ErrMalformed is returned when a payload is not a JSON object.
	ErrMalformed = fmt.Errorf("%w: malformed message", ErrProtocol)

	// ErrVersionMismatch is returned when the jsonrpc member is not "2.0".
	ErrVersionMismatch = fmt.Errorf("%w: unsupported jsonrpc version", ErrProtocol)

	// ErrInvalidParams is returned when params are missing or do not decode.
	ErrInvalidParams = fmt.Errorf("%w: invalid params", ErrProtocol)

	// ErrNoSoftware is returned by NewDispatcher without a Software.
	ErrNoSoftware = errors.New("rpc: no software configured")
)

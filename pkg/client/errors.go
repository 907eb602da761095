package client

import "errors"

// Client errors.
var (
	ErrClientTimeout   = errors.New("client: request timeout")
	ErrClientClosed    = errors.New("client: closed")
	ErrNoAddress       = errors.New("client: no address")
	ErrUnexpectedHello = errors.New("client: first message was not a hello notification")
)

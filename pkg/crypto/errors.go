package crypto

import "errors"

// Package-level sentinel errors.
var (
	// ErrRandomSource is returned when the random source fails.
	ErrRandomSource = errors.New("crypto: random source failed")

	// ErrInvalidSaltSize is returned when a password hash salt is not SaltSize bytes.
	ErrInvalidSaltSize = errors.New("crypto: invalid salt size")

	// ErrBoxTooShort is returned when a secretbox is shorter than its MAC.
	ErrBoxTooShort = errors.New("crypto: secretbox too short")

	// ErrBoxOpen is returned when a secretbox fails authentication.
	ErrBoxOpen = errors.New("crypto: secretbox authentication failed")

	// ErrStreamTooShort is returned when a secretstream ciphertext is shorter
	// than StreamOverhead.
	ErrStreamTooShort = errors.New("crypto: secretstream ciphertext too short")

	// ErrStreamAuth is returned when a secretstream ciphertext fails authentication.
	ErrStreamAuth = errors.New("crypto: secretstream authentication failed")

	// ErrStreamClosed is returned when a wiped stream state is used.
	ErrStreamClosed = errors.New("crypto: secretstream state wiped")
)

package securechannel

import "errors"

// Package-level sentinel errors.
var (
	// ErrInvalidState is returned when a message or call does not fit the
	// current handshake state.
	ErrInvalidState = errors.New("securechannel: invalid protocol state")

	// ErrInvalidSize is returned when a handshake message has the wrong length.
	ErrInvalidSize = errors.New("securechannel: invalid message size")

	// ErrAuthenticationFailed is returned when a secretbox cannot be opened,
	// which means the peer used a different password or the message was altered.
	ErrAuthenticationFailed = errors.New("securechannel: authentication failed")

	// ErrConfirmationFailed is returned when the ClientReady MAC does not verify.
	ErrConfirmationFailed = errors.New("securechannel: client confirmation failed")

	// ErrDecryptFailed is returned when an application message fails to decrypt.
	ErrDecryptFailed = errors.New("securechannel: decryption failed")

	// ErrNotEstablished is returned when encrypting before the handshake completed.
	ErrNotEstablished = errors.New("securechannel: channel not established")

	// ErrClosed is returned when a closed session is used.
	ErrClosed = errors.New("securechannel: session closed")
)

package securechannel

import (
	"github.com/backkem/streamremote/pkg/crypto"
)

// Sealed payload sizes.
const (
	clientHelloBoxSize = crypto.StreamKeySize + crypto.BoxOverhead
	serverHelloBoxSize = crypto.StreamKeySize + crypto.AuthKeySize + crypto.BoxOverhead
)

// Wire sizes of the handshake messages. The layouts are fixed, with no padding
// and no length fields.
const (
	// ClientHelloSize is salt (16) | nonce (24) | box (48).
	ClientHelloSize = crypto.SaltSize + crypto.BoxNonceSize + clientHelloBoxSize

	// ServerHelloSize is nonce (24) | box (80) | push header (24).
	ServerHelloSize = crypto.BoxNonceSize + serverHelloBoxSize + crypto.StreamHeaderSize

	// ClientReadySize is push header (24) | MAC (32).
	ClientReadySize = crypto.StreamHeaderSize + crypto.AuthSize
)

// ClientHello opens the handshake. Box seals the server-to-client stream key
// under the key derived from the password and Salt.
type ClientHello struct {
	Salt  [crypto.SaltSize]byte
	Nonce [crypto.BoxNonceSize]byte
	Box   [clientHelloBoxSize]byte
}

// Encode returns the wire form of the message.
func (m *ClientHello) Encode() []byte {
	out := make([]byte, 0, ClientHelloSize)
	out = append(out, m.Salt[:]...)
	out = append(out, m.Nonce[:]...)
	out = append(out, m.Box[:]...)
	return out
}

// DecodeClientHello parses a ClientHello. The input must be exactly
// ClientHelloSize bytes.
func DecodeClientHello(data []byte) (*ClientHello, error) {
	if len(data) != ClientHelloSize {
		return nil, ErrInvalidSize
	}
	m := &ClientHello{}
	off := copy(m.Salt[:], data)
	off += copy(m.Nonce[:], data[off:])
	copy(m.Box[:], data[off:])
	return m, nil
}

// ServerHello answers a ClientHello. Box seals the client-to-server stream key
// followed by the MAC key. Header starts the server's push stream.
type ServerHello struct {
	Nonce  [crypto.BoxNonceSize]byte
	Box    [serverHelloBoxSize]byte
	Header [crypto.StreamHeaderSize]byte
}

// Encode returns the wire form of the message.
func (m *ServerHello) Encode() []byte {
	out := make([]byte, 0, ServerHelloSize)
	out = append(out, m.Nonce[:]...)
	out = append(out, m.Box[:]...)
	out = append(out, m.Header[:]...)
	return out
}

// DecodeServerHello parses a ServerHello. The input must be exactly
// ServerHelloSize bytes.
func DecodeServerHello(data []byte) (*ServerHello, error) {
	if len(data) != ServerHelloSize {
		return nil, ErrInvalidSize
	}
	m := &ServerHello{}
	off := copy(m.Nonce[:], data)
	off += copy(m.Box[:], data[off:])
	copy(m.Header[:], data[off:])
	return m, nil
}

// ClientReady completes the handshake. Header starts the client's push stream
// and MAC authenticates Header under the MAC key from ServerHello.
type ClientReady struct {
	Header [crypto.StreamHeaderSize]byte
	MAC    [crypto.AuthSize]byte
}

// Encode returns the wire form of the message.
func (m *ClientReady) Encode() []byte {
	out := make([]byte, 0, ClientReadySize)
	out = append(out, m.Header[:]...)
	out = append(out, m.MAC[:]...)
	return out
}

// DecodeClientReady parses a ClientReady. The input must be exactly
// ClientReadySize bytes.
func DecodeClientReady(data []byte) (*ClientReady, error) {
	if len(data) != ClientReadySize {
		return nil, ErrInvalidSize
	}
	m := &ClientReady{}
	off := copy(m.Header[:], data)
	copy(m.MAC[:], data[off:])
	return m, nil
}

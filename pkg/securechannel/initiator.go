package securechannel

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/backkem/streamremote/pkg/crypto"
)

// Initiator is the client side of the handshake.
//
// Usage:
//
//	init := securechannel.NewInitiator(password)
//	hello, _ := init.Start()
//	// send hello, receive serverHello
//	ready, _ := init.HandleServerHello(serverHello)
//	// send ready; the server's first encrypted message is a "hello" notification
//	plaintext, _ := init.Decrypt(msg)
type Initiator struct {
	state State

	password []byte

	// Valid between Start and HandleServerHello.
	psk     [crypto.PSKSize]byte
	pullKey [crypto.StreamKeySize]byte

	channel

	// For testing: injectable random source
	rand io.Reader

	mu sync.Mutex
}

// NewInitiator creates the client side of a handshake. The password is copied.
func NewInitiator(password []byte) *Initiator {
	return &Initiator{
		state:    StateUninitialized,
		password: append([]byte(nil), password...),
		rand:     rand.Reader,
	}
}

// SetRandom replaces the random source (for testing).
func (i *Initiator) SetRandom(r io.Reader) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.rand = r
}

// State returns the current handshake state.
func (i *Initiator) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Start derives the pre-shared key from a fresh salt, picks the key the server
// will use to encrypt towards us and returns the ClientHello.
func (i *Initiator) Start() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateUninitialized {
		return nil, ErrInvalidState
	}

	hello := &ClientHello{}
	if err := crypto.RandomBytes(i.rand, hello.Salt[:]); err != nil {
		return nil, err
	}
	if err := crypto.RandomBytes(i.rand, hello.Nonce[:]); err != nil {
		return nil, err
	}

	psk, err := crypto.DeriveKey(i.password, hello.Salt[:])
	crypto.Zero(i.password)
	i.password = nil
	if err != nil {
		return nil, err
	}
	i.psk = psk
	crypto.Zero(psk[:])

	if err := crypto.RandomBytes(i.rand, i.pullKey[:]); err != nil {
		return nil, err
	}
	copy(hello.Box[:], crypto.SealBox(i.pullKey[:], &hello.Nonce, &i.psk))

	i.state = StateAwaitingServerHello
	return hello.Encode(), nil
}

// HandleServerHello opens the server's secrets, sets up both stream
// directions and returns the ClientReady.
func (i *Initiator) HandleServerHello(data []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateAwaitingServerHello {
		return nil, ErrInvalidState
	}

	hello, err := DecodeServerHello(data)
	if err != nil {
		return nil, err
	}

	secrets, err := crypto.OpenBox(hello.Box[:], &hello.Nonce, &i.psk)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	defer crypto.Zero(secrets)

	var pushKey [crypto.StreamKeySize]byte
	var authKey [crypto.AuthKeySize]byte
	copy(pushKey[:], secrets[:crypto.StreamKeySize])
	copy(authKey[:], secrets[crypto.StreamKeySize:])
	defer crypto.Zero(pushKey[:])
	defer crypto.Zero(authKey[:])

	pull, err := crypto.NewPullStream(&i.pullKey, &hello.Header)
	if err != nil {
		return nil, err
	}
	push, header, err := crypto.NewPushStream(&pushKey, i.rand)
	if err != nil {
		pull.Zero()
		return nil, err
	}

	ready := &ClientReady{
		Header: header,
		MAC:    crypto.Auth(&authKey, header[:]),
	}

	crypto.Zero(i.psk[:])
	crypto.Zero(i.pullKey[:])
	i.push = push
	i.pull = pull
	i.state = StateAuthenticated

	return ready.Encode(), nil
}

// Decrypt authenticates and decrypts a message from the server.
func (i *Initiator) Decrypt(ciphertext []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state != StateAuthenticated {
		return nil, ErrInvalidState
	}
	return i.decrypt(ciphertext)
}

// Encrypt encrypts a message for the server.
func (i *Initiator) Encrypt(plaintext []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	switch i.state {
	case StateAuthenticated:
		return i.encrypt(plaintext)
	case StateClosed:
		return nil, ErrClosed
	default:
		return nil, ErrNotEstablished
	}
}

// Close wipes all key material.
func (i *Initiator) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()

	crypto.Zero(i.password)
	i.password = nil
	crypto.Zero(i.psk[:])
	crypto.Zero(i.pullKey[:])
	i.wipe()
	i.state = StateClosed
}

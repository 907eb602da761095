package securechannel

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/backkem/streamremote/pkg/crypto"
)

// Result is the outcome of a successful HandleMessage call.
type Result struct {
	// Reply must be sent to the peer unencrypted (the ServerHello).
	Reply []byte

	// Established is set on the message that completed the handshake. The
	// caller sends its first encrypted message after seeing it.
	Established bool

	// Plaintext is a decrypted application message.
	Plaintext []byte
}

// Session is the server side of one connection.
//
// Usage:
//
//	session := securechannel.NewSession(password)
//	// for every message received from the transport:
//	res, err := session.HandleMessage(msg)
//	if err != nil {
//		session.Close() // drop the connection, send nothing
//	}
//	// send res.Reply raw, Encrypt a greeting on res.Established,
//	// hand res.Plaintext to the application.
type Session struct {
	state State

	// Cleared once the ClientHello has been processed.
	password []byte

	// Generated for the ClientHello and cleared once ClientReady verifies.
	pullKey [crypto.StreamKeySize]byte
	authKey [crypto.AuthKeySize]byte

	channel

	// For testing: injectable random source
	rand io.Reader

	mu sync.Mutex
}

// NewSession creates the server side of a handshake. The password is copied.
func NewSession(password []byte) *Session {
	return &Session{
		state:    StateUninitialized,
		password: append([]byte(nil), password...),
		rand:     rand.Reader,
	}
}

// SetRandom replaces the random source (for testing).
func (s *Session) SetRandom(r io.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
}

// State returns the current handshake state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Established reports whether the handshake has completed.
func (s *Session) Established() bool {
	return s.State() == StateAuthenticated
}

// HandleMessage processes one message from the peer according to the current
// state. Any error means the connection must be torn down.
func (s *Session) HandleMessage(data []byte) (Result, error) {
	switch s.State() {
	case StateUninitialized:
		reply, err := s.HandleClientHello(data)
		if err != nil {
			return Result{}, err
		}
		return Result{Reply: reply}, nil
	case StateAwaitingClientConfirmation:
		if err := s.HandleClientReady(data); err != nil {
			return Result{}, err
		}
		return Result{Established: true}, nil
	case StateAuthenticated:
		plaintext, err := s.Decrypt(data)
		if err != nil {
			return Result{}, err
		}
		return Result{Plaintext: plaintext}, nil
	case StateClosed:
		return Result{}, ErrClosed
	default:
		return Result{}, ErrInvalidState
	}
}

// HandleClientHello processes a ClientHello and returns the ServerHello.
func (s *Session) HandleClientHello(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return nil, ErrInvalidState
	}

	hello, err := DecodeClientHello(data)
	if err != nil {
		return nil, err
	}

	psk, err := crypto.DeriveKey(s.password, hello.Salt[:])
	crypto.Zero(s.password)
	s.password = nil
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(psk[:])

	keyBytes, err := crypto.OpenBox(hello.Box[:], &hello.Nonce, &psk)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	var pushKey [crypto.StreamKeySize]byte
	copy(pushKey[:], keyBytes)
	crypto.Zero(keyBytes)
	defer crypto.Zero(pushKey[:])

	push, header, err := crypto.NewPushStream(&pushKey, s.rand)
	if err != nil {
		return nil, err
	}

	if err := crypto.RandomBytes(s.rand, s.pullKey[:]); err != nil {
		push.Zero()
		return nil, err
	}
	if err := crypto.RandomBytes(s.rand, s.authKey[:]); err != nil {
		push.Zero()
		return nil, err
	}

	resp := &ServerHello{Header: header}
	if err := crypto.RandomBytes(s.rand, resp.Nonce[:]); err != nil {
		push.Zero()
		return nil, err
	}
	secrets := make([]byte, 0, crypto.StreamKeySize+crypto.AuthKeySize)
	secrets = append(secrets, s.pullKey[:]...)
	secrets = append(secrets, s.authKey[:]...)
	copy(resp.Box[:], crypto.SealBox(secrets, &resp.Nonce, &psk))
	crypto.Zero(secrets)

	s.push = push
	s.state = StateAwaitingClientConfirmation

	return resp.Encode(), nil
}

// HandleClientReady verifies a ClientReady and completes the handshake.
func (s *Session) HandleClientReady(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingClientConfirmation {
		return ErrInvalidState
	}

	ready, err := DecodeClientReady(data)
	if err != nil {
		return err
	}

	if !crypto.AuthVerify(ready.MAC[:], ready.Header[:], &s.authKey) {
		return ErrConfirmationFailed
	}

	pull, err := crypto.NewPullStream(&s.pullKey, &ready.Header)
	if err != nil {
		return err
	}

	crypto.Zero(s.pullKey[:])
	crypto.Zero(s.authKey[:])
	s.pull = pull
	s.state = StateAuthenticated

	return nil
}

// Decrypt authenticates and decrypts an application message.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return nil, ErrInvalidState
	}
	return s.decrypt(ciphertext)
}

// Encrypt encrypts an application message for the peer. Ciphertexts must be
// sent in the order Encrypt produced them.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAuthenticated:
		return s.encrypt(plaintext)
	case StateClosed:
		return nil, ErrClosed
	default:
		return nil, ErrNotEstablished
	}
}

// Close wipes all key material. The session cannot be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	crypto.Zero(s.password)
	s.password = nil
	crypto.Zero(s.pullKey[:])
	crypto.Zero(s.authKey[:])
	s.wipe()
	s.state = StateClosed
}

package crypto

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/poly1305"
)

// crypto_secretstream_xchacha20poly1305 sizes.
const (
	// StreamKeySize is the secretstream key length.
	StreamKeySize = 32

	// StreamHeaderSize is the length of the header produced by NewPushStream.
	StreamHeaderSize = 24

	// StreamOverhead is the number of bytes Push adds to each message
	// (one encrypted tag byte plus a 16-byte Poly1305 MAC).
	StreamOverhead = 1 + poly1305.TagSize

	streamCounterSize = 4
	streamINonceSize  = 8
	streamBlockSize   = 64
	hchachaInputSize  = 16
)

// Tag is the secretstream message tag.
type Tag byte

// Tag values. TagFinal is TagPush|TagRekey.
const (
	TagMessage Tag = 0
	TagPush    Tag = 1
	TagRekey   Tag = 2
	TagFinal   Tag = TagPush | TagRekey
)

// String returns the libsodium name of the tag.
func (t Tag) String() string {
	switch t {
	case TagMessage:
		return "MESSAGE"
	case TagPush:
		return "PUSH"
	case TagRekey:
		return "REKEY"
	case TagFinal:
		return "FINAL"
	default:
		return fmt.Sprintf("Tag(%d)", byte(t))
	}
}

// streamState is the shared push/pull state. The 12-byte ChaCha20 nonce is a
// 4-byte little-endian counter followed by the 8-byte inonce.
type streamState struct {
	key   [StreamKeySize]byte
	nonce [chacha20.NonceSize]byte
	wiped bool
}

func (s *streamState) init(key *[StreamKeySize]byte, header *[StreamHeaderSize]byte) error {
	subkey, err := chacha20.HChaCha20(key[:], header[:hchachaInputSize])
	if err != nil {
		return err
	}
	copy(s.key[:], subkey)
	Zero(subkey)
	s.resetCounter()
	copy(s.nonce[streamCounterSize:], header[hchachaInputSize:])
	return nil
}

func (s *streamState) resetCounter() {
	clear(s.nonce[:streamCounterSize])
	s.nonce[0] = 1
}

func (s *streamState) counterIsZero() bool {
	return binary.LittleEndian.Uint32(s.nonce[:streamCounterSize]) == 0
}

func (s *streamState) incrementCounter() {
	c := binary.LittleEndian.Uint32(s.nonce[:streamCounterSize])
	binary.LittleEndian.PutUint32(s.nonce[:streamCounterSize], c+1)
}

// keystream returns a ChaCha20-IETF cipher positioned at block counter.
func (s *streamState) keystream(counter uint32) (*chacha20.Cipher, error) {
	c, err := chacha20.NewUnauthenticatedCipher(s.key[:], s.nonce[:])
	if err != nil {
		return nil, err
	}
	if counter > 0 {
		c.SetCounter(counter)
	}
	return c, nil
}

// mac starts a Poly1305 instance keyed from keystream block 0.
func (s *streamState) mac() (*poly1305.MAC, error) {
	ks, err := s.keystream(0)
	if err != nil {
		return nil, err
	}
	var block [streamBlockSize]byte
	ks.XORKeyStream(block[:], block[:])

	var key [32]byte
	copy(key[:], block[:32])
	m := poly1305.New(&key)
	Zero(block[:])
	Zero(key[:])
	return m, nil
}

// tagBlock returns the 64-byte block whose first byte carries the tag: the
// encrypted first byte, followed by keystream block 1.
func (s *streamState) tagBlock(first byte) ([streamBlockSize]byte, error) {
	var block [streamBlockSize]byte
	ks, err := s.keystream(1)
	if err != nil {
		return block, err
	}
	block[0] = first
	ks.XORKeyStream(block[:], block[:])
	return block, nil
}

// authenticate feeds ad, the tag block and ciphertext into m and returns the MAC.
// The padding after the ciphertext is (0x10 - 64 + len(c)) & 0xf, as libsodium
// computes it.
func authenticate(m *poly1305.MAC, ad []byte, block *[streamBlockSize]byte, c []byte) []byte {
	var pad [16]byte
	m.Write(ad)
	m.Write(pad[:(0x10-len(ad))&0xf])
	m.Write(block[:])
	m.Write(c)
	m.Write(pad[:(0x10-streamBlockSize+len(c))&0xf])

	var lengths [16]byte
	binary.LittleEndian.PutUint64(lengths[:8], uint64(len(ad)))
	binary.LittleEndian.PutUint64(lengths[8:], uint64(streamBlockSize+len(c)))
	m.Write(lengths[:])
	return m.Sum(nil)
}

// advance mixes the MAC into the inonce, bumps the counter and rekeys when the
// tag asks for it or the counter wrapped.
func (s *streamState) advance(mac []byte, tag Tag) error {
	for i := 0; i < streamINonceSize; i++ {
		s.nonce[streamCounterSize+i] ^= mac[i]
	}
	s.incrementCounter()
	if tag&TagRekey != 0 || s.counterIsZero() {
		return s.rekey()
	}
	return nil
}

func (s *streamState) rekey() error {
	var buf [StreamKeySize + streamINonceSize]byte
	copy(buf[:StreamKeySize], s.key[:])
	copy(buf[StreamKeySize:], s.nonce[streamCounterSize:])

	ks, err := s.keystream(0)
	if err != nil {
		return err
	}
	ks.XORKeyStream(buf[:], buf[:])

	copy(s.key[:], buf[:StreamKeySize])
	copy(s.nonce[streamCounterSize:], buf[StreamKeySize:])
	Zero(buf[:])
	s.resetCounter()
	return nil
}

func (s *streamState) wipe() {
	Zero(s.key[:])
	Zero(s.nonce[:])
	s.wiped = true
}

// PushStream encrypts an ordered sequence of messages
// (crypto_secretstream_xchacha20poly1305 push state).
type PushStream struct {
	state streamState
}

// NewPushStream initializes a push state with key and a random header read from
// random (crypto/rand when nil). The header must reach the peer before the
// first ciphertext.
func NewPushStream(key *[StreamKeySize]byte, random io.Reader) (*PushStream, [StreamHeaderSize]byte, error) {
	var header [StreamHeaderSize]byte
	if err := RandomBytes(random, header[:]); err != nil {
		return nil, header, err
	}
	p := &PushStream{}
	if err := p.state.init(key, &header); err != nil {
		return nil, header, fmt.Errorf("crypto: secretstream init push: %w", err)
	}
	return p, header, nil
}

// Push encrypts message with optional additional data and returns
// len(message)+StreamOverhead bytes. Every call advances the state, so
// ciphertexts must be delivered in the order they were produced.
func (p *PushStream) Push(message, ad []byte, tag Tag) ([]byte, error) {
	s := &p.state
	if s.wiped {
		return nil, ErrStreamClosed
	}

	m, err := s.mac()
	if err != nil {
		return nil, err
	}
	block, err := s.tagBlock(byte(tag))
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(message)+StreamOverhead)
	out[0] = block[0]
	c := out[1 : 1+len(message)]

	ks, err := s.keystream(2)
	if err != nil {
		return nil, err
	}
	ks.XORKeyStream(c, message)

	mac := authenticate(m, ad, &block, c)
	Zero(block[:])
	copy(out[1+len(message):], mac)

	if err := s.advance(mac, tag); err != nil {
		return nil, err
	}
	return out, nil
}

// Zero wipes the state. Later calls to Push fail with ErrStreamClosed.
func (p *PushStream) Zero() {
	p.state.wipe()
}

// PullStream decrypts a sequence of messages produced by a PushStream
// (crypto_secretstream_xchacha20poly1305 pull state).
type PullStream struct {
	state streamState
}

// NewPullStream initializes a pull state from the peer's header and key.
func NewPullStream(key *[StreamKeySize]byte, header *[StreamHeaderSize]byte) (*PullStream, error) {
	p := &PullStream{}
	if err := p.state.init(key, header); err != nil {
		return nil, fmt.Errorf("crypto: secretstream init pull: %w", err)
	}
	return p, nil
}

// Pull authenticates and decrypts one ciphertext. On failure the state is left
// unchanged and no plaintext is returned.
func (p *PullStream) Pull(ciphertext, ad []byte) ([]byte, Tag, error) {
	s := &p.state
	if s.wiped {
		return nil, 0, ErrStreamClosed
	}
	if len(ciphertext) < StreamOverhead {
		return nil, 0, ErrStreamTooShort
	}
	mlen := len(ciphertext) - StreamOverhead

	m, err := s.mac()
	if err != nil {
		return nil, 0, err
	}
	block, err := s.tagBlock(ciphertext[0])
	if err != nil {
		return nil, 0, err
	}
	tag := Tag(block[0])
	block[0] = ciphertext[0]

	c := ciphertext[1 : 1+mlen]
	stored := ciphertext[1+mlen:]
	mac := authenticate(m, ad, &block, c)
	Zero(block[:])
	if subtle.ConstantTimeCompare(mac, stored) != 1 {
		Zero(mac)
		return nil, 0, ErrStreamAuth
	}

	ks, err := s.keystream(2)
	if err != nil {
		return nil, 0, err
	}
	out := make([]byte, mlen)
	ks.XORKeyStream(out, c)

	if err := s.advance(mac, tag); err != nil {
		return nil, 0, err
	}
	return out, tag, nil
}

// Zero wipes the state. Later calls to Pull fail with ErrStreamClosed.
func (p *PullStream) Zero() {
	p.state.wipe()
}

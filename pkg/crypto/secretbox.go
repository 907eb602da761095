package crypto

import (
	"golang.org/x/crypto/nacl/secretbox"
)

// Secretbox sizes (crypto_secretbox_xsalsa20poly1305).
const (
	// BoxKeySize is the secretbox key length.
	BoxKeySize = 32

	// BoxNonceSize is the secretbox nonce length.
	BoxNonceSize = 24

	// BoxOverhead is the number of bytes a sealed box adds to its message.
	BoxOverhead = secretbox.Overhead
)

// SealBox encrypts and authenticates message. The output is MAC || ciphertext,
// the same layout as crypto_secretbox_easy.
func SealBox(message []byte, nonce *[BoxNonceSize]byte, key *[BoxKeySize]byte) []byte {
	return secretbox.Seal(nil, message, nonce, key)
}

// OpenBox authenticates and decrypts a box produced by SealBox.
func OpenBox(box []byte, nonce *[BoxNonceSize]byte, key *[BoxKeySize]byte) ([]byte, error) {
	if len(box) < BoxOverhead {
		return nil, ErrBoxTooShort
	}
	out, ok := secretbox.Open(nil, box, nonce, key)
	if !ok {
		return nil, ErrBoxOpen
	}
	return out, nil
}

package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
)

// crypto_auth sizes.
const (
	// AuthKeySize is the MAC key length (crypto_auth_KEYBYTES).
	AuthKeySize = 32

	// AuthSize is the MAC length (crypto_auth_BYTES).
	AuthSize = 32
)

// HMACSHA512256 computes HMAC-SHA-512 truncated to its first 32 bytes.
func HMACSHA512256(key, message []byte) [AuthSize]byte {
	h := hmac.New(sha512.New, key)
	h.Write(message)
	sum := h.Sum(nil)

	var result [AuthSize]byte
	copy(result[:], sum)
	Zero(sum)
	return result
}

// Auth computes the crypto_auth MAC of message under key.
func Auth(key *[AuthKeySize]byte, message []byte) [AuthSize]byte {
	return HMACSHA512256(key[:], message)
}

// AuthVerify reports whether mac is the crypto_auth MAC of message under key.
// The comparison runs in constant time.
func AuthVerify(mac, message []byte, key *[AuthKeySize]byte) bool {
	if len(mac) != AuthSize {
		return false
	}
	expected := Auth(key, message)
	return hmac.Equal(mac, expected[:])
}

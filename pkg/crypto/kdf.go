package crypto

import (
	"golang.org/x/crypto/argon2"
)

// Password hashing parameters, matching libsodium's crypto_pwhash defaults.
const (
	// SaltSize is the password hash salt length (crypto_pwhash_SALTBYTES).
	SaltSize = 16

	// PSKSize is the length of a key derived from a password.
	PSKSize = 32

	// OpsLimitInteractive is the Argon2id pass count (crypto_pwhash_OPSLIMIT_INTERACTIVE).
	OpsLimitInteractive uint32 = 2

	// MemLimitInteractive is the Argon2id memory cost in KiB
	// (crypto_pwhash_MEMLIMIT_INTERACTIVE is 64 MiB).
	MemLimitInteractive uint32 = 64 * 1024

	// argon2Lanes is fixed to 1 by libsodium.
	argon2Lanes uint8 = 1
)

// DeriveKey derives a pre-shared key from a password and salt using Argon2id
// with interactive cost parameters.
//
// The same password and salt always yield the same key.
func DeriveKey(password, salt []byte) ([PSKSize]byte, error) {
	var key [PSKSize]byte
	if len(salt) != SaltSize {
		return key, ErrInvalidSaltSize
	}
	derived := argon2.IDKey(password, salt, OpsLimitInteractive, MemLimitInteractive, argon2Lanes, PSKSize)
	copy(key[:], derived)
	Zero(derived)
	return key, nil
}

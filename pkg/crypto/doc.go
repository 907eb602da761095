// Package crypto provides the cryptographic primitives used by the remote-control
// protocol. Every primitive is byte-compatible with its libsodium counterpart so
// that browser clients built on libsodium.js interoperate with this server:
//
//   - DeriveKey: crypto_pwhash (Argon2id v1.3, interactive limits)
//   - SealBox / OpenBox: crypto_secretbox_easy (XSalsa20-Poly1305)
//   - PushStream / PullStream: crypto_secretstream_xchacha20poly1305
//   - Auth / AuthVerify: crypto_auth (HMAC-SHA-512-256)
//
// Init must be called once per process before any key material is generated.
// Repeated calls are cheap and return the result of the first one.
package crypto

package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpenBox(t *testing.T) {
	var key [BoxKeySize]byte
	var nonce [BoxNonceSize]byte
	if err := RandomBytes(nil, key[:]); err != nil {
		t.Fatalf("RandomBytes() error = %v", err)
	}
	if err := RandomBytes(nil, nonce[:]); err != nil {
		t.Fatalf("RandomBytes() error = %v", err)
	}

	message := bytes.Repeat([]byte{0xA5}, 32)
	box := SealBox(message, &nonce, &key)
	if len(box) != len(message)+BoxOverhead {
		t.Fatalf("len(SealBox()) = %d, want %d", len(box), len(message)+BoxOverhead)
	}

	got, err := OpenBox(box, &nonce, &key)
	if err != nil {
		t.Fatalf("OpenBox() error = %v", err)
	}
	if !bytes.Equal(got, message) {
		t.Errorf("OpenBox() = %x, want %x", got, message)
	}
}

func TestOpenBoxTampered(t *testing.T) {
	var key [BoxKeySize]byte
	var nonce [BoxNonceSize]byte
	key[5] = 9
	nonce[7] = 3
	box := SealBox([]byte("server to client session key...."), &nonce, &key)

	for i := range box {
		tampered := append([]byte(nil), box...)
		tampered[i] ^= 0x01
		if _, err := OpenBox(tampered, &nonce, &key); !errors.Is(err, ErrBoxOpen) {
			t.Fatalf("OpenBox() with byte %d flipped error = %v, want %v", i, err, ErrBoxOpen)
		}
	}

	wrongKey := key
	wrongKey[0] ^= 0xff
	if _, err := OpenBox(box, &nonce, &wrongKey); !errors.Is(err, ErrBoxOpen) {
		t.Errorf("OpenBox() under wrong key error = %v, want %v", err, ErrBoxOpen)
	}

	if _, err := OpenBox(box[:BoxOverhead-1], &nonce, &key); !errors.Is(err, ErrBoxTooShort) {
		t.Errorf("OpenBox() short box error = %v, want %v", err, ErrBoxTooShort)
	}
}

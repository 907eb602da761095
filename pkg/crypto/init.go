package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
)

var (
	initOnce sync.Once
	initErr  error
)

// Init performs process-wide initialization. It checks that the system random
// source is usable. Safe to call from multiple goroutines and more than once.
func Init() error {
	initOnce.Do(func() {
		var probe [1]byte
		if _, err := io.ReadFull(rand.Reader, probe[:]); err != nil {
			initErr = fmt.Errorf("%w: %v", ErrRandomSource, err)
		}
	})
	return initErr
}

// RandomBytes fills b from r, or from crypto/rand when r is nil.
func RandomBytes(r io.Reader, b []byte) error {
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, b); err != nil {
		return fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	return nil
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	clear(b)
}

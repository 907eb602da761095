package securechannel

import (
	"github.com/backkem/streamremote/pkg/crypto"
)

// channel holds both stream directions once a handshake has completed.
type channel struct {
	push *crypto.PushStream
	pull *crypto.PullStream
}

func (c *channel) encrypt(plaintext []byte) ([]byte, error) {
	if c.push == nil {
		return nil, ErrNotEstablished
	}
	return c.push.Push(plaintext, nil, crypto.TagMessage)
}

func (c *channel) decrypt(ciphertext []byte) ([]byte, error) {
	if c.pull == nil {
		return nil, ErrNotEstablished
	}
	// Tags carry no meaning here; each transport message is one RPC payload.
	plaintext, _, err := c.pull.Pull(ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func (c *channel) wipe() {
	if c.push != nil {
		c.push.Zero()
		c.push = nil
	}
	if c.pull != nil {
		c.pull.Zero()
		c.pull = nil
	}
}

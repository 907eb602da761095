package securechannel

import (
	"bytes"
	"errors"
	"testing"
)

func TestMessageSizes(t *testing.T) {
	if ClientHelloSize != 88 {
		t.Errorf("ClientHelloSize = %d, want 88", ClientHelloSize)
	}
	if ServerHelloSize != 128 {
		t.Errorf("ServerHelloSize = %d, want 128", ServerHelloSize)
	}
	if ClientReadySize != 56 {
		t.Errorf("ClientReadySize = %d, want 56", ClientReadySize)
	}
}

func TestClientHelloLayout(t *testing.T) {
	m := &ClientHello{}
	for i := range m.Salt {
		m.Salt[i] = 0x01
	}
	for i := range m.Nonce {
		m.Nonce[i] = 0x02
	}
	for i := range m.Box {
		m.Box[i] = 0x03
	}

	data := m.Encode()
	want := append(append(bytes.Repeat([]byte{1}, 16), bytes.Repeat([]byte{2}, 24)...), bytes.Repeat([]byte{3}, 48)...)
	if !bytes.Equal(data, want) {
		t.Fatalf("Encode() = %x, want %x", data, want)
	}

	got, err := DecodeClientHello(data)
	if err != nil {
		t.Fatalf("DecodeClientHello() error = %v", err)
	}
	if *got != *m {
		t.Error("DecodeClientHello() fields differ from encoded message")
	}
}

func TestServerHelloLayout(t *testing.T) {
	data := make([]byte, ServerHelloSize)
	for i := range data {
		data[i] = byte(i)
	}
	m, err := DecodeServerHello(data)
	if err != nil {
		t.Fatalf("DecodeServerHello() error = %v", err)
	}
	if m.Nonce[0] != 0 || m.Nonce[23] != 23 {
		t.Errorf("Nonce = %x, want bytes 0..23", m.Nonce)
	}
	if m.Box[0] != 24 || m.Box[79] != 103 {
		t.Errorf("Box spans %d..%d, want 24..103", m.Box[0], m.Box[79])
	}
	if m.Header[0] != 104 || m.Header[23] != 127 {
		t.Errorf("Header spans %d..%d, want 104..127", m.Header[0], m.Header[23])
	}
	if !bytes.Equal(m.Encode(), data) {
		t.Error("Encode() does not reproduce the decoded bytes")
	}
}

func TestClientReadyLayout(t *testing.T) {
	data := make([]byte, ClientReadySize)
	for i := range data {
		data[i] = byte(i)
	}
	m, err := DecodeClientReady(data)
	if err != nil {
		t.Fatalf("DecodeClientReady() error = %v", err)
	}
	if m.Header[23] != 23 || m.MAC[0] != 24 || m.MAC[31] != 55 {
		t.Errorf("unexpected field split: header ends %d, mac %d..%d", m.Header[23], m.MAC[0], m.MAC[31])
	}
	if !bytes.Equal(m.Encode(), data) {
		t.Error("Encode() does not reproduce the decoded bytes")
	}
}

func TestDecodeWrongSize(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		decode func([]byte) error
	}{
		{"ClientHello", ClientHelloSize, func(b []byte) error { _, err := DecodeClientHello(b); return err }},
		{"ServerHello", ServerHelloSize, func(b []byte) error { _, err := DecodeServerHello(b); return err }},
		{"ClientReady", ClientReadySize, func(b []byte) error { _, err := DecodeClientReady(b); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, n := range []int{0, tt.size - 1, tt.size + 1} {
				if err := tt.decode(make([]byte, n)); !errors.Is(err, ErrInvalidSize) {
					t.Errorf("decode(len %d) error = %v, want %v", n, err, ErrInvalidSize)
				}
			}
			if err := tt.decode(make([]byte, tt.size)); err != nil {
				t.Errorf("decode(len %d) error = %v", tt.size, err)
			}
		})
	}
}

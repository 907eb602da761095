package securechannel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/backkem/streamremote/pkg/crypto"
)

var testPassword = []byte("hunter2-but-longer")

// establish runs a full handshake.
func establish(t *testing.T) (*Initiator, *Session) {
	t.Helper()

	client := NewInitiator(testPassword)
	server := NewSession(testPassword)

	hello, err := client.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	res, err := server.HandleMessage(hello)
	if err != nil {
		t.Fatalf("HandleMessage(ClientHello) error = %v", err)
	}
	ready, err := client.HandleServerHello(res.Reply)
	if err != nil {
		t.Fatalf("HandleServerHello() error = %v", err)
	}
	res, err = server.HandleMessage(ready)
	if err != nil {
		t.Fatalf("HandleMessage(ClientReady) error = %v", err)
	}
	if !res.Established {
		t.Fatal("HandleMessage(ClientReady) did not report Established")
	}
	return client, server
}

func TestHandshakeSuccess(t *testing.T) {
	client := NewInitiator(testPassword)
	server := NewSession(testPassword)

	if server.State() != StateUninitialized {
		t.Fatalf("server state = %v, want %v", server.State(), StateUninitialized)
	}

	hello, err := client.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(hello) != ClientHelloSize {
		t.Fatalf("len(ClientHello) = %d, want %d", len(hello), ClientHelloSize)
	}
	if client.State() != StateAwaitingServerHello {
		t.Errorf("client state = %v, want %v", client.State(), StateAwaitingServerHello)
	}

	res, err := server.HandleMessage(hello)
	if err != nil {
		t.Fatalf("HandleMessage(ClientHello) error = %v", err)
	}
	if len(res.Reply) != ServerHelloSize {
		t.Fatalf("len(ServerHello) = %d, want %d", len(res.Reply), ServerHelloSize)
	}
	if res.Established || res.Plaintext != nil {
		t.Errorf("HandleMessage(ClientHello) = %+v, want only Reply", res)
	}
	if server.State() != StateAwaitingClientConfirmation {
		t.Errorf("server state = %v, want %v", server.State(), StateAwaitingClientConfirmation)
	}

	ready, err := client.HandleServerHello(res.Reply)
	if err != nil {
		t.Fatalf("HandleServerHello() error = %v", err)
	}
	if len(ready) != ClientReadySize {
		t.Fatalf("len(ClientReady) = %d, want %d", len(ready), ClientReadySize)
	}

	res, err = server.HandleMessage(ready)
	if err != nil {
		t.Fatalf("HandleMessage(ClientReady) error = %v", err)
	}
	if !res.Established || res.Reply != nil {
		t.Errorf("HandleMessage(ClientReady) = %+v, want Established only", res)
	}
	if !server.Established() {
		t.Errorf("server state = %v, want %v", server.State(), StateAuthenticated)
	}

	greeting := []byte(`{"jsonrpc":"2.0","method":"hello"}`)
	c, err := server.Encrypt(greeting)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if len(c) != len(greeting)+crypto.StreamOverhead {
		t.Errorf("len(Encrypt()) = %d, want %d", len(c), len(greeting)+crypto.StreamOverhead)
	}
	got, err := client.Decrypt(c)
	if err != nil {
		t.Fatalf("client Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, greeting) {
		t.Errorf("client Decrypt() = %q, want %q", got, greeting)
	}

	request := []byte(`{"jsonrpc":"2.0","method":"outputs/get","id":1}`)
	c, err = client.Encrypt(request)
	if err != nil {
		t.Fatalf("client Encrypt() error = %v", err)
	}
	res, err = server.HandleMessage(c)
	if err != nil {
		t.Fatalf("HandleMessage(ciphertext) error = %v", err)
	}
	if !bytes.Equal(res.Plaintext, request) {
		t.Errorf("Plaintext = %q, want %q", res.Plaintext, request)
	}
}

func TestHandshakeKeysRecovered(t *testing.T) {
	client := NewInitiator(testPassword)
	server := NewSession(testPassword)

	hello, err := client.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	serverToClientKey := client.pullKey
	psk := client.psk

	reply, err := server.HandleClientHello(hello)
	if err != nil {
		t.Fatalf("HandleClientHello() error = %v", err)
	}

	// The client's key must drive the server's push stream.
	msg, err := DecodeServerHello(reply)
	if err != nil {
		t.Fatalf("DecodeServerHello() error = %v", err)
	}
	probe, err := crypto.NewPullStream(&serverToClientKey, &msg.Header)
	if err != nil {
		t.Fatalf("NewPullStream() error = %v", err)
	}
	c, err := server.push.Push([]byte("probe"), nil, crypto.TagMessage)
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if got, _, err := probe.Pull(c, nil); err != nil || string(got) != "probe" {
		t.Fatalf("Pull() = %q, %v; want %q", got, err, "probe")
	}

	// The client must see exactly the keys the server generated.
	secrets, err := crypto.OpenBox(msg.Box[:], &msg.Nonce, &psk)
	if err != nil {
		t.Fatalf("OpenBox() error = %v", err)
	}
	if !bytes.Equal(secrets[:crypto.StreamKeySize], server.pullKey[:]) {
		t.Error("client-to-server key differs from the one the server stored")
	}
	if !bytes.Equal(secrets[crypto.StreamKeySize:], server.authKey[:]) {
		t.Error("authentication key differs from the one the server stored")
	}
	if server.pullKey == server.authKey {
		t.Error("pull key and authentication key are identical")
	}
}

func TestClientHelloWrongSize(t *testing.T) {
	for _, n := range []int{0, 1, ClientHelloSize - 1, ClientHelloSize + 1, ServerHelloSize} {
		server := NewSession(testPassword)
		res, err := server.HandleMessage(make([]byte, n))
		if !errors.Is(err, ErrInvalidSize) {
			t.Errorf("HandleMessage(len %d) error = %v, want %v", n, err, ErrInvalidSize)
		}
		if res.Reply != nil {
			t.Errorf("HandleMessage(len %d) produced a reply", n)
		}
		if server.State() != StateUninitialized {
			t.Errorf("state after len %d = %v, want %v", n, server.State(), StateUninitialized)
		}
	}
}

func TestWrongPassword(t *testing.T) {
	client := NewInitiator([]byte("not the password"))
	server := NewSession(testPassword)

	hello, err := client.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	res, err := server.HandleMessage(hello)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("HandleMessage() error = %v, want %v", err, ErrAuthenticationFailed)
	}
	if res.Reply != nil {
		t.Error("wrong password produced a reply")
	}
}

func TestClientHelloTampered(t *testing.T) {
	client := NewInitiator(testPassword)
	hello, err := client.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// One position per field edge; each case costs a full password hash.
	for _, i := range []int{0, 15, 16, 39, 40, 55, 56, ClientHelloSize - 1} {
		tampered := append([]byte(nil), hello...)
		tampered[i] ^= 0x01
		server := NewSession(testPassword)
		if _, err := server.HandleMessage(tampered); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("HandleMessage() with byte %d flipped error = %v, want %v", i, err, ErrAuthenticationFailed)
		}
	}
}

func TestServerHelloTampered(t *testing.T) {
	for _, i := range []int{0, 23, 24, 64, 103, 104, ServerHelloSize - 1} {
		client := NewInitiator(testPassword)
		server := NewSession(testPassword)
		hello, err := client.Start()
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		res, err := server.HandleMessage(hello)
		if err != nil {
			t.Fatalf("HandleMessage() error = %v", err)
		}
		res.Reply[i] ^= 0x01

		ready, err := client.HandleServerHello(res.Reply)
		if i < crypto.BoxNonceSize+serverHelloBoxSize {
			if !errors.Is(err, ErrAuthenticationFailed) {
				t.Errorf("HandleServerHello() with byte %d flipped error = %v, want %v", i, err, ErrAuthenticationFailed)
			}
			continue
		}

		// A damaged stream header is only detected on the first message.
		if err != nil {
			t.Fatalf("HandleServerHello() error = %v", err)
		}
		if _, err := server.HandleMessage(ready); err != nil {
			t.Fatalf("HandleMessage(ClientReady) error = %v", err)
		}
		c, err := server.Encrypt([]byte("hello"))
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if _, err := client.Decrypt(c); !errors.Is(err, ErrDecryptFailed) {
			t.Errorf("Decrypt() with header byte %d flipped error = %v, want %v", i, err, ErrDecryptFailed)
		}
	}
}

func TestClientReadyTampered(t *testing.T) {
	client := NewInitiator(testPassword)
	server := NewSession(testPassword)
	hello, _ := client.Start()
	res, err := server.HandleMessage(hello)
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	ready, err := client.HandleServerHello(res.Reply)
	if err != nil {
		t.Fatalf("HandleServerHello() error = %v", err)
	}

	for i := range ready {
		tampered := append([]byte(nil), ready...)
		tampered[i] ^= 0x01
		res, err := server.HandleMessage(tampered)
		if !errors.Is(err, ErrConfirmationFailed) {
			t.Fatalf("HandleMessage() with byte %d flipped error = %v, want %v", i, err, ErrConfirmationFailed)
		}
		if res.Established {
			t.Fatalf("byte %d flipped: handshake reported Established", i)
		}
	}

	if _, err := server.HandleMessage(ready[:ClientReadySize-1]); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("HandleMessage(short ClientReady) error = %v, want %v", err, ErrInvalidSize)
	}
	if server.State() != StateAwaitingClientConfirmation {
		t.Fatalf("state = %v, want %v", server.State(), StateAwaitingClientConfirmation)
	}
}

func TestClientReadyWrongAuthKey(t *testing.T) {
	client := NewInitiator(testPassword)
	server := NewSession(testPassword)
	hello, _ := client.Start()
	res, err := server.HandleMessage(hello)
	if err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if _, err := client.HandleServerHello(res.Reply); err != nil {
		t.Fatalf("HandleServerHello() error = %v", err)
	}

	var wrongKey [crypto.AuthKeySize]byte
	wrongKey[0] = 0x5A
	forged := &ClientReady{}
	copy(forged.Header[:], bytes.Repeat([]byte{0x33}, crypto.StreamHeaderSize))
	forged.MAC = crypto.Auth(&wrongKey, forged.Header[:])

	res, err = server.HandleMessage(forged.Encode())
	if !errors.Is(err, ErrConfirmationFailed) {
		t.Fatalf("HandleMessage() error = %v, want %v", err, ErrConfirmationFailed)
	}
	if res.Established {
		t.Error("forged ClientReady reported Established")
	}
	if _, err := server.Encrypt([]byte("hello")); !errors.Is(err, ErrNotEstablished) {
		t.Errorf("Encrypt() error = %v, want %v", err, ErrNotEstablished)
	}
}

func TestCiphertextTampered(t *testing.T) {
	client, server := establish(t)

	c, err := client.Encrypt([]byte(`{"jsonrpc":"2.0","method":"outputs/stop","params":{"id":"cam1"},"id":7}`))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	for i := range c {
		tampered := append([]byte(nil), c...)
		tampered[i] ^= 0x01
		res, err := server.HandleMessage(tampered)
		if !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("HandleMessage() with byte %d flipped error = %v, want %v", i, err, ErrDecryptFailed)
		}
		if res.Plaintext != nil {
			t.Fatalf("byte %d flipped: plaintext surfaced", i)
		}
	}
	if _, err := server.HandleMessage(c[:crypto.StreamOverhead-1]); !errors.Is(err, ErrDecryptFailed) {
		t.Errorf("HandleMessage(short) error = %v, want %v", err, ErrDecryptFailed)
	}
	if _, err := server.HandleMessage(c); err != nil {
		t.Errorf("HandleMessage(original) error = %v", err)
	}
}

func TestMessageStreamOrder(t *testing.T) {
	client, server := establish(t)

	var sent [][]byte
	for n := 0; n < 64; n++ {
		m := bytes.Repeat([]byte{'a' + byte(n%26)}, n*7)
		c, err := server.Encrypt(m)
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		sent = append(sent, m)
		got, err := client.Decrypt(c)
		if err != nil {
			t.Fatalf("Decrypt(%d) error = %v", n, err)
		}
		if !bytes.Equal(got, sent[n]) {
			t.Fatalf("Decrypt(%d) = %q, want %q", n, got, sent[n])
		}
	}
}

func TestEncryptBeforeEstablished(t *testing.T) {
	server := NewSession(testPassword)
	if _, err := server.Encrypt([]byte("x")); !errors.Is(err, ErrNotEstablished) {
		t.Errorf("Encrypt() error = %v, want %v", err, ErrNotEstablished)
	}
	if _, err := server.Decrypt([]byte("x")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Decrypt() error = %v, want %v", err, ErrInvalidState)
	}
	if err := server.HandleClientReady(make([]byte, ClientReadySize)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("HandleClientReady() error = %v, want %v", err, ErrInvalidState)
	}
}

func TestSessionClose(t *testing.T) {
	client, server := establish(t)
	c, _ := client.Encrypt([]byte("late"))

	server.Close()
	client.Close()

	if server.State() != StateClosed {
		t.Errorf("state = %v, want %v", server.State(), StateClosed)
	}
	if server.push != nil || server.pull != nil {
		t.Error("stream states survived Close()")
	}
	if _, err := server.HandleMessage(c); !errors.Is(err, ErrClosed) {
		t.Errorf("HandleMessage() after Close error = %v, want %v", err, ErrClosed)
	}
	if _, err := server.Encrypt([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Encrypt() after Close error = %v, want %v", err, ErrClosed)
	}
	if _, err := client.Encrypt([]byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("client Encrypt() after Close error = %v, want %v", err, ErrClosed)
	}
}

func TestCloseMidHandshake(t *testing.T) {
	client := NewInitiator(testPassword)
	server := NewSession(testPassword)
	hello, _ := client.Start()
	if _, err := server.HandleMessage(hello); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	server.Close()

	if server.pullKey != ([crypto.StreamKeySize]byte{}) {
		t.Error("pull key not wiped")
	}
	if server.authKey != ([crypto.AuthKeySize]byte{}) {
		t.Error("authentication key not wiped")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateUninitialized, "Uninitialized"},
		{StateAwaitingServerHello, "AwaitingServerHello"},
		{StateAwaitingClientConfirmation, "AwaitingClientConfirmation"},
		{StateAuthenticated, "Authenticated"},
		{StateClosed, "Closed"},
		{State(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

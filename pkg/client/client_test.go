package client

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/backkem/streamremote/pkg/rpc"
	"github.com/backkem/streamremote/pkg/server"
	"github.com/backkem/streamremote/pkg/software"
	"github.com/backkem/streamremote/pkg/transport"
)

type stateEvent struct {
	id    string
	state software.OutputState
}

func TestClient(t *testing.T) {
	env := newTestEnv(t, nil)

	events := make(chan stateEvent, 16)
	hellos := 0
	c, err := env.connect(t, Config{
		Password: testPassword,
		OnHello:  func() { hellos++ },
		OnOutputStateChanged: func(id string, state software.OutputState) {
			events <- stateEvent{id, state}
		},
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if hellos != 1 {
		t.Errorf("OnHello called %d times, want 1", hellos)
	}
	ctx := context.Background()

	t.Run("GetOutputs", func(t *testing.T) {
		outputs, err := c.GetOutputs(ctx)
		if err != nil {
			t.Fatalf("GetOutputs() error = %v", err)
		}
		if len(outputs) != 2 {
			t.Fatalf("len(outputs) = %d, want 2", len(outputs))
		}
		want := software.Output{
			ID:           "cam1",
			Name:         "Twitch",
			Type:         software.OutputTypeRemoteStream,
			State:        software.OutputStateStopped,
			DelaySeconds: 2,
		}
		if outputs[0] != want {
			t.Errorf("outputs[0] = %+v, want %+v", outputs[0], want)
		}
		if outputs[1].ID != "rec" {
			t.Errorf("outputs[1].ID = %q, want rec", outputs[1].ID)
		}
	})

	t.Run("StartOutput", func(t *testing.T) {
		if err := c.StartOutput(ctx, "cam1"); err != nil {
			t.Fatalf("StartOutput() error = %v", err)
		}
		for _, want := range []software.OutputState{software.OutputStateStarting, software.OutputStateActive} {
			select {
			case ev := <-events:
				if ev.id != "cam1" || ev.state != want {
					t.Errorf("event = %+v, want cam1 %v", ev, want)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("no %v event", want)
			}
		}
	})

	t.Run("StopOutput", func(t *testing.T) {
		if err := c.StopOutput(ctx, "cam1"); err != nil {
			t.Fatalf("StopOutput() error = %v", err)
		}
		waitFor(t, "cam1 stopped", func() bool {
			o, _ := env.dummy.Output("cam1")
			return o.State == software.OutputStateStopped
		})
	})

	t.Run("SetOutputDelay", func(t *testing.T) {
		if err := c.SetOutputDelay(ctx, "rec", 7); err != nil {
			t.Fatalf("SetOutputDelay() error = %v", err)
		}
		if o, _ := env.dummy.Output("rec"); o.DelaySeconds != 7 {
			t.Errorf("rec delay = %d, want 7", o.DelaySeconds)
		}

		err := c.SetOutputDelay(ctx, "rec", -1)
		var rpcErr *rpc.Error
		if !errors.As(err, &rpcErr) {
			t.Fatalf("SetOutputDelay(-1) error = %v, want *rpc.Error", err)
		}
		if rpcErr.Code != 0 {
			t.Errorf("Code = %d, want 0", rpcErr.Code)
		}
	})
}

func TestClientConcurrentRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	c, err := env.connect(t, Config{Password: testPassword})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	const n = 8
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := c.GetOutputs(context.Background())
			errCh <- err
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errCh; err != nil {
			t.Errorf("GetOutputs() error = %v", err)
		}
	}
}

func TestClientWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	c, err := env.connect(t, Config{Password: "wrong"})
	if err == nil {
		t.Fatal("Connect() with the wrong password succeeded")
	}
	if c != nil {
		t.Error("Connect() returned a client on failure")
	}
}

func TestClientHandshakeTimeout(t *testing.T) {
	// Nobody reads from the far end, so the handshake stalls on its first write.
	local, remote := net.Pipe()
	defer remote.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Connect(ctx, transport.NewStreamClientConn(local), Config{Password: testPassword})
	if err != ErrClientTimeout {
		t.Errorf("Connect() error = %v, want %v", err, ErrClientTimeout)
	}
}

func TestClientClose(t *testing.T) {
	env := newTestEnv(t, nil)

	closed := make(chan error, 1)
	c, err := env.connect(t, Config{
		Password: testPassword,
		OnClose:  func(err error) { closed <- err },
	})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if c.Err() != nil {
		t.Errorf("Err() = %v on an open client", c.Err())
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Error("Done() not closed after Close()")
	}
	if err := <-closed; err != ErrClientClosed {
		t.Errorf("OnClose error = %v, want %v", err, ErrClientClosed)
	}
	if _, err := c.GetOutputs(context.Background()); err != ErrClientClosed {
		t.Errorf("GetOutputs() after Close error = %v, want %v", err, ErrClientClosed)
	}
}

func TestClientServerStop(t *testing.T) {
	env := newTestEnv(t, nil)
	c, err := env.connect(t, Config{Password: testPassword})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := env.srv.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not notice the server going away")
	}
	if c.Err() == nil {
		t.Error("Err() = nil after the server stopped")
	}
}

func TestDialNoAddress(t *testing.T) {
	if _, err := Dial(context.Background(), "", Config{}); err != ErrNoAddress {
		t.Errorf("Dial() error = %v, want %v", err, ErrNoAddress)
	}
}

func TestDial(t *testing.T) {
	env := newTestEnv(t, func(c *server.Config) {
		c.DisableTCP = false
		c.DisableWebSocket = false
	})

	addrs := map[string]string{
		"tcp": "tcp://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(env.srv.Port(transport.TransportTypeTCP))),
		"ws":  "ws://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(env.srv.Port(transport.TransportTypeWebSocket))) + "/",
	}
	for name, addr := range addrs {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			c, err := Dial(ctx, addr, Config{Password: testPassword})
			if err != nil {
				t.Fatalf("Dial(%s) error = %v", addr, err)
			}
			defer c.Close()

			outputs, err := c.GetOutputs(ctx)
			if err != nil {
				t.Fatalf("GetOutputs() error = %v", err)
			}
			if len(outputs) != 2 {
				t.Errorf("len(outputs) = %d, want 2", len(outputs))
			}
		})
	}
}

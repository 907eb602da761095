// Package client is a remote-control client for a streamremote server.
//
// Usage:
//
//	c, err := client.Dial(ctx, "tcp://studio.local:9001", client.Config{
//	    Password: "secret",
//	    OnOutputStateChanged: func(id string, state software.OutputState) {
//	        fmt.Println(id, state)
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//	outputs, err := c.GetOutputs(ctx)
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/backkem/streamremote/pkg/crypto"
	"github.com/backkem/streamremote/pkg/rpc"
	"github.com/backkem/streamremote/pkg/securechannel"
	"github.com/backkem/streamremote/pkg/software"
	"github.com/backkem/streamremote/pkg/transport"
	"github.com/pion/logging"
)

// DefaultRequestTimeout is the default timeout for requests and the handshake.
const DefaultRequestTimeout = 10 * time.Second

// Config configures a Client.
type Config struct {
	// Password is the server's remote-control password.
	Password string

	// Timeout for requests without a context deadline. Defaults to
	// DefaultRequestTimeout if zero.
	Timeout time.Duration

	// OnHello is called once the server has greeted the authenticated
	// channel, before Connect returns.
	OnHello func()

	// OnOutputStateChanged is called from the read goroutine for every
	// outputs/stateChanged notification. It must not block.
	OnOutputStateChanged func(id string, state software.OutputState)

	// OnClose is called once when the connection ends, with the reason.
	OnClose func(err error)

	LoggerFactory logging.LoggerFactory
}

// Client is an authenticated connection to a server. Requests may be issued
// from multiple goroutines.
type Client struct {
	config Config
	conn   transport.ClientConn
	init   *securechannel.Initiator
	log    logging.LeveledLogger

	// sendMu keeps ciphertexts in the order Encrypt produced them.
	sendMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan *rpc.Message
	err     error

	done chan struct{}
}

// Dial connects to address (see transport.Dial) and completes the handshake.
func Dial(ctx context.Context, address string, config Config) (*Client, error) {
	if address == "" {
		return nil, ErrNoAddress
	}
	conn, err := transport.Dial(ctx, address)
	if err != nil {
		return nil, err
	}
	c, err := Connect(ctx, conn, config)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Connect runs the handshake over an established connection. On success the
// Client owns conn. The server closes the connection without a word when the
// password is wrong, so that surfaces as a receive error.
func Connect(ctx context.Context, conn transport.ClientConn, config Config) (*Client, error) {
	if config.Timeout == 0 {
		config.Timeout = DefaultRequestTimeout
	}
	if err := crypto.Init(); err != nil {
		return nil, err
	}

	c := &Client{
		config:  config,
		conn:    conn,
		init:    securechannel.NewInitiator([]byte(config.Password)),
		pending: make(map[uint64]chan *rpc.Message),
		done:    make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("client")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	// Receive cannot be interrupted, so closing the connection unblocks the
	// handshake on cancellation.
	errCh := make(chan error, 1)
	go func() { errCh <- c.handshake() }()

	select {
	case err := <-errCh:
		if err != nil {
			c.init.Close()
			return nil, err
		}
	case <-ctx.Done():
		conn.Close()
		<-errCh
		c.init.Close()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrClientTimeout
		}
		return nil, ctx.Err()
	}

	if c.log != nil {
		c.log.Debug("Handshake complete")
	}
	if config.OnHello != nil {
		config.OnHello()
	}

	go c.readLoop()
	return c, nil
}

func (c *Client) handshake() error {
	hello, err := c.init.Start()
	if err != nil {
		return err
	}
	if err := c.conn.Send(hello); err != nil {
		return fmt.Errorf("client: sending ClientHello: %w", err)
	}

	serverHello, err := c.conn.Receive()
	if err != nil {
		return fmt.Errorf("client: receiving ServerHello: %w", err)
	}
	ready, err := c.init.HandleServerHello(serverHello)
	if err != nil {
		return err
	}
	if err := c.conn.Send(ready); err != nil {
		return fmt.Errorf("client: sending ClientReady: %w", err)
	}

	// The server closes instead of greeting when our MAC does not verify.
	ciphertext, err := c.conn.Receive()
	if err != nil {
		return fmt.Errorf("client: receiving hello: %w", err)
	}
	msg, err := c.decode(ciphertext)
	if err != nil {
		return err
	}
	if msg.Method != rpc.MethodHello {
		return ErrUnexpectedHello
	}
	return nil
}

func (c *Client) decode(ciphertext []byte) (*rpc.Message, error) {
	plaintext, err := c.init.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	return rpc.DecodeMessage(plaintext)
}

func (c *Client) readLoop() {
	for {
		ciphertext, err := c.conn.Receive()
		if err != nil {
			c.shutdown(err)
			return
		}
		msg, err := c.decode(ciphertext)
		if err != nil {
			c.shutdown(err)
			return
		}

		if msg.IsNotification() {
			c.handleNotification(msg)
			continue
		}

		id, err := strconv.ParseUint(string(msg.ID), 10, 64)
		if err != nil {
			if c.log != nil {
				c.log.Warnf("Dropping response with id %s", msg.ID)
			}
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

func (c *Client) handleNotification(msg *rpc.Message) {
	if msg.Method != rpc.MethodOutputsStateChanged {
		if c.log != nil {
			c.log.Debugf("Ignoring notification %s", msg.Method)
		}
		return
	}

	var p rpc.StateChangedParams
	if err := json.Unmarshal(msg.Params, &p); err != nil {
		if c.log != nil {
			c.log.Warnf("Malformed stateChanged params: %v", err)
		}
		return
	}
	state, err := software.ParseOutputState(p.State)
	if err != nil {
		if c.log != nil {
			c.log.Warnf("Unknown state %q for output %s", p.State, p.ID)
		}
		return
	}
	if c.config.OnOutputStateChanged != nil {
		c.config.OnOutputStateChanged(p.ID, state)
	}
}

// shutdown records the first error, fails every pending call and releases
// the connection.
func (c *Client) shutdown(err error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	c.err = err
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	c.conn.Close()
	c.init.Close()
	close(c.done)

	if c.log != nil {
		c.log.Debugf("Connection closed: %v", err)
	}
	if c.config.OnClose != nil {
		c.config.OnClose(err)
	}
}

// Close ends the connection.
func (c *Client) Close() error {
	c.shutdown(ErrClientClosed)
	<-c.done
	return nil
}

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended, or nil while it is up.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// call sends a request and waits for its response.
func (c *Client) call(ctx context.Context, method string, params any) (*rpc.Message, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrClientClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan *rpc.Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	req, err := rpc.NewRequest(id, method, params)
	if err != nil {
		forget()
		return nil, err
	}
	if err := c.send(req); err != nil {
		forget()
		return nil, err
	}

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, ErrClientClosed
		}
		if msg.Error != nil {
			return nil, msg.Error
		}
		return msg, nil
	case <-ctx.Done():
		forget()
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrClientTimeout
		}
		return nil, ctx.Err()
	}
}

func (c *Client) send(payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	ciphertext, err := c.init.Encrypt(payload)
	if err != nil {
		if errors.Is(err, securechannel.ErrClosed) {
			return ErrClientClosed
		}
		return err
	}
	return c.conn.Send(ciphertext)
}

// GetOutputs returns all outputs of the software, sorted by id.
func (c *Client) GetOutputs(ctx context.Context) ([]software.Output, error) {
	msg, err := c.call(ctx, rpc.MethodOutputsGet, nil)
	if err != nil {
		return nil, err
	}

	var infos map[string]rpc.OutputInfo
	if err := json.Unmarshal(msg.Result, &infos); err != nil {
		return nil, fmt.Errorf("client: decoding outputs: %w", err)
	}

	outputs := make([]software.Output, 0, len(infos))
	for _, info := range infos {
		o, err := outputFromInfo(info)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, o)
	}
	sort.Slice(outputs, func(i, j int) bool { return outputs[i].ID < outputs[j].ID })
	return outputs, nil
}

func outputFromInfo(info rpc.OutputInfo) (software.Output, error) {
	state, err := software.ParseOutputState(info.State)
	if err != nil {
		return software.Output{}, fmt.Errorf("client: output %s: %w", info.ID, err)
	}
	typ, err := software.ParseOutputType(info.Type)
	if err != nil {
		return software.Output{}, fmt.Errorf("client: output %s: %w", info.ID, err)
	}
	return software.Output{
		ID:           info.ID,
		Name:         info.Name,
		Type:         typ,
		State:        state,
		DelaySeconds: info.DelaySeconds,
	}, nil
}

// StartOutput asks the server to start an output. Progress arrives through
// OnOutputStateChanged.
func (c *Client) StartOutput(ctx context.Context, id string) error {
	_, err := c.call(ctx, rpc.MethodOutputsStart, rpc.OutputParams{ID: id})
	return err
}

// StopOutput asks the server to stop an output.
func (c *Client) StopOutput(ctx context.Context, id string) error {
	_, err := c.call(ctx, rpc.MethodOutputsStop, rpc.OutputParams{ID: id})
	return err
}

// SetOutputDelay sets an output's delay. A refusal by the software is
// returned as an *rpc.Error.
func (c *Client) SetOutputDelay(ctx context.Context, id string, seconds int64) error {
	_, err := c.call(ctx, rpc.MethodOutputsSetDelay, rpc.SetDelayParams{ID: id, Seconds: seconds})
	return err
}

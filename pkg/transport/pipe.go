package transport

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic message delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor checks for messages.
	// Default: 1ms
	ProcessInterval time.Duration
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is a bidirectional in-memory message link built on pion's test.Bridge.
// Unlike a byte stream, every Write arrives as exactly one Read.
//
// By default, Pipe delivers messages in a background goroutine. Use
// SetAutoProcess(false) and Tick/Process for deterministic tests.
type Pipe struct {
	bridge *test.Bridge

	mu              sync.Mutex
	closed          bool
	autoProcess     bool
	processInterval time.Duration
	stopCh          chan struct{}
	wg              sync.WaitGroup
}

// NewPipe creates a new pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a new pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:          test.NewBridge(),
		autoProcess:     config.AutoProcess,
		processInterval: config.ProcessInterval,
		stopCh:          make(chan struct{}),
	}
	if p.processInterval == 0 {
		p.processInterval = 1 * time.Millisecond
	}
	if p.autoProcess {
		p.startAutoProcess()
	}
	return p
}

func (p *Pipe) startAutoProcess() {
	p.wg.Add(1)
	go func(stopCh chan struct{}) {
		defer p.wg.Done()
		ticker := time.NewTicker(p.processInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}(p.stopCh)
}

// SetAutoProcess enables or disables automatic message delivery.
// When disabled, you must call Tick() or Process() manually.
func (p *Pipe) SetAutoProcess(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.autoProcess == enabled {
		return
	}
	p.autoProcess = enabled

	if enabled {
		p.stopCh = make(chan struct{})
		p.startAutoProcess()
	} else {
		close(p.stopCh)
		p.wg.Wait()
	}
}

// AutoProcess returns whether auto-processing is enabled.
func (p *Pipe) AutoProcess() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoProcess
}

// Conn0 returns the connection for endpoint 0.
func (p *Pipe) Conn0() net.Conn {
	return p.bridge.GetConn0()
}

// Conn1 returns the connection for endpoint 1.
func (p *Pipe) Conn1() net.Conn {
	return p.bridge.GetConn1()
}

// Tick delivers at most one queued message in each direction to a waiting
// reader and returns the number delivered.
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers queued messages until no reader takes one.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			break
		}
		count += n
	}
	return count
}

// Close closes both endpoints, discards undelivered messages and unblocks
// pending reads with io.EOF.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.bridge.GetConn0().Close()
	p.bridge.GetConn1().Close()

	// A bridge endpoint only reports EOF once its inbound queue is empty and
	// the bridge ticks.
	p.bridge.Drop(0, 0, p.bridge.Len(0))
	p.bridge.Drop(1, 0, p.bridge.Len(1))
	p.bridge.Tick()
	return nil
}

// PipeAddr implements net.Addr for pipe endpoints.
type PipeAddr struct {
	ID int // Endpoint ID (0 or 1)
}

// Network returns "pipe".
func (a PipeAddr) Network() string { return "pipe" }

// String returns a string representation of the address.
func (a PipeAddr) String() string { return fmt.Sprintf("pipe:%d", a.ID) }

// PipeTransportConfig configures a PipeTransport.
type PipeTransportConfig struct {
	// PipeConfig is applied to every pipe Dial creates. The zero value
	// selects DefaultPipeConfig.
	PipeConfig PipeConfig

	// LoggerFactory is the factory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// PipeTransport is a Transport whose connections are in-memory pipes. Dial
// creates a pipe, serves endpoint 1 and returns endpoint 0 to the caller.
type PipeTransport struct {
	pipeConfig PipeConfig
	handler    Handler
	wg         sync.WaitGroup
	log        logging.LeveledLogger

	mu      sync.Mutex
	pipes   map[ConnID]*Pipe
	started bool
	closed  bool
}

// NewPipeTransport creates a pipe transport.
func NewPipeTransport(config PipeTransportConfig) *PipeTransport {
	t := &PipeTransport{
		pipeConfig: config.PipeConfig,
		pipes:      make(map[ConnID]*Pipe),
	}
	if t.pipeConfig.ProcessInterval == 0 && !t.pipeConfig.AutoProcess {
		t.pipeConfig = DefaultPipeConfig()
	}
	if config.LoggerFactory != nil {
		t.log = config.LoggerFactory.NewLogger("pipe")
	}
	return t
}

// Type implements Transport.
func (t *PipeTransport) Type() TransportType {
	return TransportTypePipe
}

// Start implements Transport.
func (t *PipeTransport) Start(handler Handler) error {
	if handler == nil {
		return ErrNoHandler
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	t.handler = handler
	return nil
}

// Stop closes every pipe and waits for their goroutines.
func (t *PipeTransport) Stop() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	pipes := make([]*Pipe, 0, len(t.pipes))
	for _, p := range t.pipes {
		pipes = append(pipes, p)
	}
	t.mu.Unlock()

	for _, p := range pipes {
		p.Close()
	}
	t.wg.Wait()
	return nil
}

// LocalAddr implements Transport.
func (t *PipeTransport) LocalAddr() net.Addr {
	return PipeAddr{ID: 1}
}

// ConnectionCount returns the number of open pipes.
func (t *PipeTransport) ConnectionCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pipes)
}

// Dial opens a new in-memory connection to the transport's handler.
func (t *PipeTransport) Dial() (ClientConn, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if !t.started {
		t.mu.Unlock()
		return nil, ErrNotStarted
	}

	pipe := NewPipeWithConfig(t.pipeConfig)
	sc := &pipeConn{
		id:   nextConnID(),
		pipe: pipe,
		conn: pipe.Conn1(),
	}
	t.pipes[sc.id] = pipe
	t.wg.Add(1)
	t.mu.Unlock()

	if t.log != nil {
		t.log.Debugf("%s opened", sc.id)
	}

	go func() {
		defer t.wg.Done()
		defer func() {
			pipe.Close()
			t.mu.Lock()
			delete(t.pipes, sc.id)
			t.mu.Unlock()
		}()

		buf := make([]byte, MaxMessageSize)
		serve(t.handler, sc, func() ([]byte, error) {
			return readPipeMessage(sc.conn, buf)
		})
	}()

	return &pipeClientConn{pipe: pipe, conn: pipe.Conn0()}, nil
}

func readPipeMessage(conn net.Conn, buf []byte) ([]byte, error) {
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), buf[:n]...), nil
}

// pipeConn is the served endpoint of a pipe.
type pipeConn struct {
	id   ConnID
	pipe *Pipe
	conn net.Conn
}

func (c *pipeConn) ID() ConnID           { return c.id }
func (c *pipeConn) Type() TransportType  { return TransportTypePipe }
func (c *pipeConn) RemoteAddr() net.Addr { return PipeAddr{ID: 0} }
func (c *pipeConn) Close() error         { return c.pipe.Close() }

func (c *pipeConn) Send(data []byte) error {
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	_, err := c.conn.Write(data)
	return err
}

// pipeClientConn is the dialing endpoint of a pipe.
type pipeClientConn struct {
	pipe *Pipe
	conn net.Conn

	bufOnce sync.Once
	buf     []byte
}

func (c *pipeClientConn) Send(data []byte) error {
	if len(data) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	_, err := c.conn.Write(data)
	return err
}

func (c *pipeClientConn) Receive() ([]byte, error) {
	c.bufOnce.Do(func() { c.buf = make([]byte, MaxMessageSize) })
	return readPipeMessage(c.conn, c.buf)
}

func (c *pipeClientConn) Close() error {
	return c.pipe.Close()
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/backkem/streamremote/pkg/crypto"
	"github.com/backkem/streamremote/pkg/discovery"
	"github.com/backkem/streamremote/pkg/rpc"
	"github.com/backkem/streamremote/pkg/software"
	"github.com/backkem/streamremote/pkg/transport"
	"github.com/pion/logging"
)

// Server accepts remote-control clients for one streaming application.
type Server struct {
	config Config
	state  State
	log    logging.LeveledLogger

	dispatcher *rpc.Dispatcher
	table      *Table

	// Set by Start before subscribing to the software and never replaced.
	transports  *transport.Manager
	advertiser  *discovery.Advertiser
	unsubscribe func()

	// reconfigMu serializes configuration changes.
	reconfigMu sync.Mutex

	// Synchronization
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a server. It does not bind any listener until Start.
func New(config Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	if err := crypto.Init(); err != nil {
		return nil, fmt.Errorf("server: initializing crypto: %w", err)
	}

	dispatcher, err := rpc.NewDispatcher(rpc.DispatcherConfig{
		Software:      config.Software,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:     config,
		state:      StateInitialized,
		dispatcher: dispatcher,
		table:      NewTable(config.MaxConnections),
		stopCh:     make(chan struct{}),
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("server")
	}
	return s, nil
}

// Start binds the listeners from the software's configuration, starts
// advertising if enabled and begins accepting connections. Cancelling ctx
// stops the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()

	if !s.state.CanStart() {
		s.mu.Unlock()
		if s.state.IsRunning() {
			return ErrAlreadyStarted
		}
		return ErrAlreadyStopped
	}

	s.state = StateStarting
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.startTransports(); err != nil {
		s.cancel()
		s.state = StateInitialized
		s.mu.Unlock()
		return err
	}

	if err := s.startDiscovery(); err != nil {
		s.stopTransports()
		s.cancel()
		s.state = StateInitialized
		s.mu.Unlock()
		return err
	}

	// Subscribing may replay the current configuration synchronously.
	// Neither callback takes s.mu.
	s.unsubscribe = s.config.Software.Subscribe(software.Events{
		OnOutputStateChanged: s.broadcastStateChanged,
		OnInitialized:        s.applyConfig,
	})

	s.state = StateRunning
	s.mu.Unlock()

	go func() {
		select {
		case <-s.ctx.Done():
			s.Stop()
		case <-s.stopCh:
		}
	}()

	if s.log != nil {
		s.log.Infof("Server started on %v", s.LocalAddresses())
	}
	return nil
}

func (s *Server) startTransports() error {
	cfg := s.config.Software.Configuration()

	manager, err := transport.NewManager(transport.ManagerConfig{
		Host:             s.config.Host,
		TCPPort:          cfg.TCPPort,
		WebSocketPort:    cfg.WebSocketPort,
		DisableTCP:       s.config.DisableTCP,
		DisableWebSocket: s.config.DisableWebSocket,
		WebSocketPath:    s.config.WebSocketPath,
		Transports:       s.config.Transports,
		Handler:          s,
		LoggerFactory:    s.config.LoggerFactory,
	})
	if err != nil {
		return fmt.Errorf("server: creating transports: %w", err)
	}
	if err := manager.Start(); err != nil {
		manager.Stop()
		return fmt.Errorf("server: starting transports: %w", err)
	}
	s.transports = manager
	return nil
}

func (s *Server) stopTransports() {
	if s.transports != nil {
		if err := s.transports.Stop(); err != nil && s.log != nil {
			s.log.Warnf("Stopping transports: %v", err)
		}
	}
}

func (s *Server) startDiscovery() error {
	if !s.config.Advertise {
		return nil
	}

	port, txt, ok := s.advertisement()
	if !ok {
		if s.log != nil {
			s.log.Warn("Advertising requested without a TCP or WebSocket listener")
		}
		return nil
	}

	adv, err := discovery.NewAdvertiser(discovery.AdvertiserConfig{
		InstanceName:  s.config.InstanceName,
		ServerFactory: s.config.MDNSServerFactory,
		LoggerFactory: s.config.LoggerFactory,
	})
	if err != nil {
		return fmt.Errorf("server: creating advertiser: %w", err)
	}
	if err := adv.Start(port, txt); err != nil {
		adv.Close()
		return fmt.Errorf("server: starting advertiser: %w", err)
	}
	s.advertiser = adv
	return nil
}

// advertisement returns the SRV port and TXT payload for the bound listeners.
func (s *Server) advertisement() (int, discovery.ServiceTXT, bool) {
	tcpPort := s.transports.Port(transport.TransportTypeTCP)
	wsPort := s.transports.Port(transport.TransportTypeWebSocket)

	txt := discovery.ServiceTXT{WebSocketPort: wsPort, TCP: tcpPort != 0}
	switch {
	case tcpPort != 0:
		return tcpPort, txt, true
	case wsPort != 0:
		return wsPort, txt, true
	}
	return 0, txt, false
}

// Stop withdraws the advertisement, closes all listeners and tears down
// every connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CanStop() {
		if s.state == StateStopped {
			return ErrAlreadyStopped
		}
		return ErrNotStarted
	}

	s.state = StateStopping

	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.cancel != nil {
			s.cancel()
		}
	})

	if s.unsubscribe != nil {
		s.unsubscribe()
	}

	if s.advertiser != nil {
		s.advertiser.Close()
	}

	s.stopTransports()

	// Transports report every disconnect before Stop returns, so anything
	// left was rejected mid-registration.
	for _, c := range s.table.RemoveAll() {
		c.close()
	}

	s.state = StateStopped

	if s.log != nil {
		s.log.Info("Server stopped")
	}
	return nil
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Connections returns the live connections ordered by ID.
func (s *Server) Connections() []*Connection {
	return s.table.Snapshot()
}

// LocalAddresses returns the addresses of all running transports.
func (s *Server) LocalAddresses() []net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.transports == nil {
		return nil
	}
	return s.transports.LocalAddresses()
}

// Port returns the bound port of the TCP or WebSocket listener, or 0.
func (s *Server) Port(tt transport.TransportType) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.transports == nil {
		return 0
	}
	return s.transports.Port(tt)
}

// InstanceName returns the advertised DNS-SD instance name, or "" when not
// advertising.
func (s *Server) InstanceName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.advertiser == nil {
		return ""
	}
	return s.advertiser.InstanceName()
}

// HandleConnect implements transport.Handler.
func (s *Server) HandleConnect(conn transport.Conn) {
	password := s.config.Software.Configuration().Password
	c := newConnection(conn, password, s.dispatcher)

	if err := s.table.Add(c); err != nil {
		if s.log != nil {
			s.log.Warnf("Rejecting %s from %v: %v", conn.ID(), conn.RemoteAddr(), err)
		}
		c.close()
		return
	}

	if s.log != nil {
		s.log.Infof("Client %s connected over %s from %v", conn.ID(), conn.Type(), conn.RemoteAddr())
	}

	if s.config.HandshakeTimeout > 0 {
		c.setDeadline(s.config.HandshakeTimeout, func() {
			s.teardown(c, ErrHandshakeTimeout)
		})
	}
}

// HandleMessage implements transport.Handler.
func (s *Server) HandleMessage(conn transport.Conn, data []byte) {
	c := s.table.Find(conn.ID())
	if c == nil {
		conn.Close()
		return
	}

	if err := c.handle(data); err != nil {
		s.teardown(c, err)
	}
}

// HandleDisconnect implements transport.Handler.
func (s *Server) HandleDisconnect(conn transport.Conn) {
	c := s.table.Remove(conn.ID())
	if c == nil {
		return
	}
	c.close()

	if s.log != nil {
		s.log.Infof("Client %s disconnected", conn.ID())
	}
}

// teardown removes a failed connection and closes it without replying.
func (s *Server) teardown(c *Connection, reason error) {
	if s.table.Remove(c.ID()) == nil {
		return
	}
	// Handshake failures stay below Info so the log is no password oracle.
	if s.log != nil {
		s.log.Debugf("Closing %s in state %s: %v", c.ID(), c.State(), reason)
	}
	c.close()
}

// broadcastStateChanged sends an outputs/stateChanged notification to every
// authenticated connection.
func (s *Server) broadcastStateChanged(id string, state software.OutputState) {
	payload, err := rpc.StateChanged(id, state)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("Encoding state change of %s: %v", id, err)
		}
		return
	}

	for _, c := range s.table.Snapshot() {
		if err := c.notify(payload); err != nil {
			s.teardown(c, err)
		}
	}
}

// applyConfig moves listeners whose port changed and refreshes the
// advertisement. The password is read per connection and needs no action.
func (s *Server) applyConfig(cfg software.Config) {
	s.reconfigMu.Lock()
	defer s.reconfigMu.Unlock()

	if err := s.transports.SetPorts(cfg.TCPPort, cfg.WebSocketPort); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return
		}
		if s.log != nil {
			s.log.Errorf("Applying ports tcp=%d ws=%d: %v", cfg.TCPPort, cfg.WebSocketPort, err)
		}
		return
	}

	if s.advertiser == nil {
		return
	}
	port, txt, ok := s.advertisement()
	if !ok {
		return
	}
	if err := s.advertiser.Update(port, txt); err != nil && !errors.Is(err, discovery.ErrClosed) {
		if s.log != nil {
			s.log.Warnf("Updating advertisement: %v", err)
		}
	}
}

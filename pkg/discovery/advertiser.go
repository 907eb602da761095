package discovery

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// MDNSServer is the interface for mDNS service registration.
// This allows for dependency injection in tests.
type MDNSServer interface {
	// Shutdown stops the server.
	Shutdown()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	// Register creates a new mDNS server for the given service.
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

// zeroconfServerFactory registers services with grandcat/zeroconf.
type zeroconfServerFactory struct{}

func (z *zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// AdvertiserConfig holds configuration for the Advertiser.
type AdvertiserConfig struct {
	// InstanceName is the DNS-SD instance name, usually the host's name.
	// If empty, a random 16-character hex name is generated.
	InstanceName string

	// Interfaces specifies which network interfaces to advertise on.
	// If nil, all interfaces are used.
	Interfaces []net.Interface

	// ServerFactory is the factory for creating mDNS servers.
	// If nil, the default zeroconf factory is used.
	ServerFactory MDNSServerFactory

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes a remote-control server as a _streamremote._tcp
// service.
type Advertiser struct {
	config   AdvertiserConfig
	factory  MDNSServerFactory
	instance string
	log      logging.LeveledLogger

	mu     sync.Mutex
	server MDNSServer
	port   int
	txt    ServiceTXT
	closed bool
}

// NewAdvertiser creates a new Advertiser with the given configuration.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	instance := config.InstanceName
	if instance == "" {
		var err error
		instance, err = generateRandomInstanceName()
		if err != nil {
			return nil, fmt.Errorf("discovery: generating instance name: %w", err)
		}
	}
	if len(instance) > MaxInstanceNameLength {
		return nil, ErrInvalidInstanceName
	}

	factory := config.ServerFactory
	if factory == nil {
		factory = &zeroconfServerFactory{}
	}

	a := &Advertiser{
		config:   config,
		factory:  factory,
		instance: instance,
	}
	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("discovery")
	}
	return a, nil
}

// Start begins advertising on port, which is the TCP listener when txt.TCP
// is set and the WebSocket listener otherwise.
func (a *Advertiser) Start(port int, txt ServiceTXT) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		return ErrAlreadyStarted
	}
	return a.registerLocked(port, txt)
}

// Update replaces the advertised port and TXT payload. The old registration
// is withdrawn first, so browsers may briefly see the service disappear.
func (a *Advertiser) Update(port int, txt ServiceTXT) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server == nil {
		return ErrNotStarted
	}
	if port == a.port && txt == a.txt {
		return nil
	}

	a.server.Shutdown()
	a.server = nil
	return a.registerLocked(port, txt)
}

func (a *Advertiser) registerLocked(port int, txt ServiceTXT) error {
	if port <= 0 || port > 65535 {
		return ErrInvalidPort
	}
	if err := txt.Validate(); err != nil {
		return err
	}

	records := txt.Encode()
	if a.log != nil {
		a.log.Debugf("Registering mDNS service: instance=%s service=%s port=%d txt=%v",
			a.instance, ServiceName, port, records)
	}

	server, err := a.factory.Register(a.instance, ServiceName, DefaultDomain, port, records, a.config.Interfaces)
	if err != nil {
		return fmt.Errorf("discovery: mDNS registration failed: %w", err)
	}

	a.server = server
	a.port = port
	a.txt = txt

	if a.log != nil {
		a.log.Infof("Advertising %s as %q on port %d", ServiceName, a.instance, port)
	}
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server == nil {
		return ErrNotStarted
	}

	a.server.Shutdown()
	a.server = nil
	return nil
}

// Close withdraws any advertisement and closes the advertiser.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	a.closed = true
	return nil
}

// IsAdvertising returns true while a registration is active.
func (a *Advertiser) IsAdvertising() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}

// InstanceName returns the DNS-SD instance name.
func (a *Advertiser) InstanceName() string {
	return a.instance
}

// Port returns the advertised port, or 0 if not advertising.
func (a *Advertiser) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return 0
	}
	return a.port
}

// generateRandomInstanceName generates a random 64-bit instance name.
// Format: 16 uppercase hex characters.
func generateRandomInstanceName() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016X", binary.BigEndian.Uint64(buf[:])), nil
}

// AdvertiserWithContext closes its Advertiser when the context is done.
type AdvertiserWithContext struct {
	*Advertiser
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdvertiserWithContext creates an Advertiser that can be cancelled via context.
func NewAdvertiserWithContext(ctx context.Context, config AdvertiserConfig) (*AdvertiserWithContext, error) {
	adv, err := NewAdvertiser(config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	awc := &AdvertiserWithContext{
		Advertiser: adv,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	go func() {
		defer close(awc.done)
		<-ctx.Done()
		adv.Close()
	}()

	return awc, nil
}

// Close cancels the context and waits for the advertiser to close.
func (a *AdvertiserWithContext) Close() error {
	a.cancel()
	<-a.done
	return nil
}

package discovery

import (
	"context"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
)

// MockMDNSResolver provides a mock mDNS resolver for testing without real network I/O.
// Registered entries are delivered once per Browse, after which the entries
// channel is closed without waiting for ctx.
type MockMDNSResolver struct {
	mu       sync.RWMutex
	services map[string][]*zeroconf.ServiceEntry
}

// NewMockMDNSResolver creates a new mock resolver.
func NewMockMDNSResolver() *MockMDNSResolver {
	return &MockMDNSResolver{
		services: make(map[string][]*zeroconf.ServiceEntry),
	}
}

// RegisterService registers a service that will be returned by Browse/Lookup.
func (m *MockMDNSResolver) RegisterService(service string, entry *zeroconf.ServiceEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[service] = append(m.services[service], entry)
}

// ClearServices removes all registered services.
func (m *MockMDNSResolver) ClearServices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = make(map[string][]*zeroconf.ServiceEntry)
}

func (m *MockMDNSResolver) snapshot(service string) []*zeroconf.ServiceEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]*zeroconf.ServiceEntry, len(m.services[service]))
	copy(entries, m.services[service])
	return entries
}

// Browse implements MDNSResolver.
func (m *MockMDNSResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	svcEntries := m.snapshot(service)
	go func() {
		defer close(entries)
		for _, entry := range svcEntries {
			select {
			case entries <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Lookup implements MDNSResolver.
func (m *MockMDNSResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	svcEntries := m.snapshot(service)
	go func() {
		defer close(entries)
		for _, entry := range svcEntries {
			if entry.Instance != instance {
				continue
			}
			select {
			case entries <- entry:
			case <-ctx.Done():
			}
			return
		}
	}()
	return nil
}

// MockService creates a service entry as a server with the given listeners
// would advertise it. A zero tcpPort describes a WebSocket-only server.
func MockService(instanceName string, ip net.IP, tcpPort, wsPort int) *zeroconf.ServiceEntry {
	port := tcpPort
	if port == 0 {
		port = wsPort
	}
	txt := ServiceTXT{WebSocketPort: wsPort, TCP: tcpPort != 0}

	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instanceName,
			Service:  ServiceName,
			Domain:   DefaultDomain,
		},
		HostName: instanceName + ".local.",
		Port:     port,
		Text:     txt.Encode(),
	}
	if ip.To4() != nil {
		entry.AddrIPv4 = []net.IP{ip}
	} else {
		entry.AddrIPv6 = []net.IP{ip}
	}
	return entry
}

// MockMDNSServerFactory records registrations instead of touching the network.
type MockMDNSServerFactory struct {
	mu            sync.Mutex
	registrations []MockRegistration
	err           error
}

// MockRegistration is one recorded Register call.
type MockRegistration struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	Text     []string
	server   *mockMDNSServer
}

// IsShutdown reports whether the registration has been withdrawn.
func (r MockRegistration) IsShutdown() bool {
	r.server.mu.Lock()
	defer r.server.mu.Unlock()
	return r.server.shutdown
}

type mockMDNSServer struct {
	mu       sync.Mutex
	shutdown bool
}

func (s *mockMDNSServer) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()
}

// NewMockMDNSServerFactory creates a new mock server factory.
func NewMockMDNSServerFactory() *MockMDNSServerFactory {
	return &MockMDNSServerFactory{}
}

// SetError makes subsequent Register calls fail with err.
func (f *MockMDNSServerFactory) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Register implements MDNSServerFactory.
func (f *MockMDNSServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &mockMDNSServer{}
	f.registrations = append(f.registrations, MockRegistration{
		Instance: instance,
		Service:  service,
		Domain:   domain,
		Port:     port,
		Text:     append([]string(nil), txt...),
		server:   s,
	})
	return s, nil
}

// Registrations returns all recorded registrations in order.
func (f *MockMDNSServerFactory) Registrations() []MockRegistration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]MockRegistration(nil), f.registrations...)
}

// Active returns the most recent registration that has not been shut down.
func (f *MockMDNSServerFactory) Active() (MockRegistration, bool) {
	regs := f.Registrations()
	for i := len(regs) - 1; i >= 0; i-- {
		if !regs[i].IsShutdown() {
			return regs[i], true
		}
	}
	return MockRegistration{}, false
}

package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DefaultBrowseTimeout is the default timeout for browse operations.
const DefaultBrowseTimeout = 3 * time.Second

// DefaultLookupTimeout is the default timeout for lookup operations.
const DefaultLookupTimeout = 5 * time.Second

// ResolvedService contains information about a discovered server.
type ResolvedService struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// HostName is the target host name.
	HostName string

	// Port is the SRV port.
	Port int

	// IPs contains the resolved IP addresses, sorted by preference.
	IPs []net.IP

	// Text contains the raw TXT record key-value pairs.
	Text map[string]string

	// TXT is the parsed TXT payload.
	TXT ServiceTXT
}

// PreferredIP returns the most preferred IP address (first in the sorted list).
// Returns nil if no addresses are available.
func (r *ResolvedService) PreferredIP() net.IP {
	if len(r.IPs) > 0 {
		return r.IPs[0]
	}
	return nil
}

func (r *ResolvedService) host() string {
	if ip := r.PreferredIP(); ip != nil {
		return ip.String()
	}
	return strings.TrimSuffix(r.HostName, ".")
}

// TCPAddress returns host:port of the length-prefixed TCP listener.
func (r *ResolvedService) TCPAddress() (string, bool) {
	if !r.TXT.TCP {
		return "", false
	}
	return net.JoinHostPort(r.host(), strconv.Itoa(r.Port)), true
}

// WebSocketURL returns the ws:// URL of the WebSocket listener.
func (r *ResolvedService) WebSocketURL() (string, bool) {
	port := r.TXT.WebSocketPort
	if port == 0 {
		if r.TXT.TCP {
			return "", false
		}
		port = r.Port
	}
	return "ws://" + net.JoinHostPort(r.host(), strconv.Itoa(port)) + "/", true
}

// DialAddress returns the preferred address in the form accepted by
// transport.Dial: TCP when enabled, WebSocket otherwise.
func (r *ResolvedService) DialAddress() string {
	if addr, ok := r.TCPAddress(); ok {
		return "tcp://" + addr
	}
	url, _ := r.WebSocketURL()
	return url
}

// MDNSResolver is the interface for mDNS service resolution.
// Implementations deliver entries until ctx is done and then close entries,
// as grandcat/zeroconf does.
type MDNSResolver interface {
	// Browse browses for services of the given type.
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

	// Lookup looks up a specific service instance.
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production implementation using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Browse(ctx, service, domain, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	return z.resolver.Lookup(ctx, instance, service, domain, entries)
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the underlying mDNS resolver implementation.
	// If nil, the default zeroconf resolver is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout is the timeout for browse operations.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout is the timeout for lookup operations.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration

	// LoggerFactory for creating loggers.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers remote-control servers via DNS-SD.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}

	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	r := &Resolver{
		config:   config,
		resolver: resolver,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("discovery")
	}
	return r, nil
}

// Browse discovers servers on the network. The returned channel yields each
// instance once and is closed when ctx is done or the browse timeout expires.
// Entries with an unreadable TXT payload are skipped.
func (r *Resolver) Browse(ctx context.Context) (<-chan ResolvedService, error) {
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); ok {
		ctx, cancel = context.WithCancel(ctx)
	} else {
		ctx, cancel = context.WithTimeout(ctx, r.config.BrowseTimeout)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := r.resolver.Browse(ctx, ServiceName, DefaultDomain, entries); err != nil {
		cancel()
		return nil, err
	}

	results := make(chan ResolvedService)
	go func() {
		defer close(results)
		defer cancel()

		seen := make(map[string]bool)
		// The resolver blocks on sends, so entries is drained until it closes.
		for entry := range entries {
			if ctx.Err() != nil || entry == nil || seen[entry.Instance] {
				continue
			}
			svc, err := entryToResolvedService(entry)
			if err != nil {
				if r.log != nil {
					r.log.Debugf("Skipping %q: %v", entry.Instance, err)
				}
				continue
			}
			seen[entry.Instance] = true

			select {
			case results <- svc:
			case <-ctx.Done():
			}
		}
	}()

	return results, nil
}

// Lookup resolves a single server by instance name.
func (r *Resolver) Lookup(ctx context.Context, instanceName string) (*ResolvedService, error) {
	if instanceName == "" || len(instanceName) > MaxInstanceNameLength {
		return nil, ErrInvalidInstanceName
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.LookupTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)

	entries := make(chan *zeroconf.ServiceEntry)
	if err := r.resolver.Lookup(ctx, instanceName, ServiceName, DefaultDomain, entries); err != nil {
		cancel()
		return nil, err
	}
	defer func() {
		cancel()
		go drain(entries)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				if ctx.Err() == context.DeadlineExceeded {
					return nil, ErrTimeout
				}
				return nil, ErrServiceNotFound
			}
			if entry == nil || entry.Instance != instanceName {
				continue
			}
			svc, err := entryToResolvedService(entry)
			if err != nil {
				return nil, err
			}
			return &svc, nil
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrTimeout
			}
			return nil, ctx.Err()
		}
	}
}

func drain(entries <-chan *zeroconf.ServiceEntry) {
	for range entries {
	}
}

// entryToResolvedService converts a zeroconf.ServiceEntry to ResolvedService.
func entryToResolvedService(entry *zeroconf.ServiceEntry) (ResolvedService, error) {
	txt, err := ParseServiceTXT(entry.Text)
	if err != nil {
		return ResolvedService{}, err
	}

	var allIPs []net.IP
	allIPs = append(allIPs, entry.AddrIPv4...)
	allIPs = append(allIPs, entry.AddrIPv6...)

	return ResolvedService{
		InstanceName: entry.Instance,
		HostName:     entry.HostName,
		Port:         entry.Port,
		IPs:          SortIPsByPreference(allIPs),
		Text:         ParseTXT(entry.Text),
		TXT:          txt,
	}, nil
}

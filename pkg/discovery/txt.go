package discovery

import (
	"strconv"
	"strings"
)

// DNS-SD naming.
const (
	// ServiceName is the DNS-SD service type of a remote-control server.
	ServiceName = "_streamremote._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."

	// MaxInstanceNameLength is the DNS label limit for instance names.
	MaxInstanceNameLength = 63
)

// TXT record keys.
const (
	// TXTKeyVersion is the protocol version key.
	TXTKeyVersion = "v"

	// TXTKeyWebSocketPort is the WebSocket listener port key.
	TXTKeyWebSocketPort = "ws"

	// TXTKeyTCP marks whether the length-prefixed TCP listener is enabled.
	TXTKeyTCP = "tcp"
)

// ProtocolVersion is the handshake and RPC revision this package advertises.
const ProtocolVersion = 1

// ServiceTXT is the TXT payload of a remote-control service. The SRV port is
// the TCP listener when TCP is enabled, the WebSocket listener otherwise.
type ServiceTXT struct {
	// Version is the protocol version. Zero encodes as ProtocolVersion.
	Version int

	// WebSocketPort is the WebSocket listener port, or 0 if disabled.
	WebSocketPort int

	// TCP reports whether the SRV port is a TCP listener.
	TCP bool
}

// Encode converts the TXT payload to DNS-SD key=value strings.
func (t ServiceTXT) Encode() []string {
	version := t.Version
	if version == 0 {
		version = ProtocolVersion
	}

	records := []string{TXTKeyVersion + "=" + strconv.Itoa(version)}
	if t.WebSocketPort > 0 {
		records = append(records, TXTKeyWebSocketPort+"="+strconv.Itoa(t.WebSocketPort))
	}
	if t.TCP {
		records = append(records, TXTKeyTCP+"=1")
	} else {
		records = append(records, TXTKeyTCP+"=0")
	}
	return records
}

// Validate checks the ports.
func (t ServiceTXT) Validate() error {
	if t.WebSocketPort < 0 || t.WebSocketPort > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// ParseTXT splits TXT records into a key/value map. Records without '=' are
// dropped.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string)
	for _, record := range records {
		if idx := strings.IndexByte(record, '='); idx > 0 {
			result[record[:idx]] = record[idx+1:]
		}
	}
	return result
}

// ParseServiceTXT parses raw TXT records. A missing version is an error, as
// is a version newer than ProtocolVersion.
func ParseServiceTXT(records []string) (ServiceTXT, error) {
	m := ParseTXT(records)
	var txt ServiceTXT

	v, ok := m[TXTKeyVersion]
	if !ok {
		return txt, ErrInvalidTXTRecord
	}
	version, err := strconv.Atoi(v)
	if err != nil || version < 1 {
		return txt, ErrInvalidTXTRecord
	}
	if version > ProtocolVersion {
		return txt, ErrUnsupportedVersion
	}
	txt.Version = version

	if v, ok := m[TXTKeyWebSocketPort]; ok {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return txt, ErrInvalidTXTRecord
		}
		txt.WebSocketPort = port
	}

	// Older advertisements carry no tcp key and always had TCP enabled.
	txt.TCP = m[TXTKeyTCP] != "0"

	return txt, nil
}

package discovery

import (
	"net"
	"sort"
)

// SortIPsByPreference orders addresses for dialing, best first:
//  1. Private IPv4 (the common home and studio LAN)
//  2. Other IPv4
//  3. Global and unique-local IPv6
//  4. Link-local IPv6, which needs a zone to dial
//  5. Loopback and anything else
//
// The input slice is not modified.
func SortIPsByPreference(ips []net.IP) []net.IP {
	if len(ips) <= 1 {
		return ips
	}

	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})

	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	if ip.To16() == nil {
		return 99 // Invalid
	}

	switch {
	case ip.IsLoopback():
		return 80
	case ip.IsMulticast():
		return 90
	}

	if ip.To4() != nil {
		if ip.IsPrivate() {
			return 0
		}
		if ip.IsLinkLocalUnicast() {
			return 20
		}
		return 1
	}

	switch {
	case ip.IsPrivate(): // fc00::/7
		return 10
	case ip.IsGlobalUnicast():
		return 11
	case ip.IsLinkLocalUnicast():
		return 30
	}
	return 50
}

// FilterIPv4 returns only IPv4 addresses from the slice.
func FilterIPv4(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			result = append(result, ip)
		}
	}
	return result
}

// GetLocalAddresses returns all non-loopback IP addresses on the host.
func GetLocalAddresses() ([]net.IP, error) {
	var addresses []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip != nil && !ip.IsLoopback() {
				addresses = append(addresses, ip)
			}
		}
	}

	return addresses, nil
}

// ReachableIPs returns the addresses a peer can dial for a listener bound to
// ip, sorted by preference. A wildcard bind expands to the host's non-loopback
// addresses; an IPv4 wildcard keeps only IPv4 ones. Link-local IPv6 addresses
// are skipped since they carry no zone.
func ReachableIPs(ip net.IP) ([]net.IP, error) {
	if ip != nil && !ip.IsUnspecified() {
		return []net.IP{ip}, nil
	}

	local, err := GetLocalAddresses()
	if err != nil {
		return nil, err
	}
	if ip.To4() != nil {
		local = FilterIPv4(local)
	}

	var result []net.IP
	for _, addr := range local {
		if addr.To4() == nil && addr.IsLinkLocalUnicast() {
			continue
		}
		result = append(result, addr)
	}
	return SortIPsByPreference(result), nil
}

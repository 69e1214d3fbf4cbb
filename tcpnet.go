package tcpnet

import "net/netip"

// IsIP returns 4 for an IPv4 address, 6 for an IPv6 address and 0 for
// anything else. IPv6 zones are accepted; IPv4-mapped IPv6 addresses count
// as IPv6.
func IsIP(s string) int {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return 0
	}
	if a.Is4() {
		return 4
	}
	return 6
}

// IsIPv4 reports whether s is an IPv4 address in dotted decimal form.
func IsIPv4(s string) bool { return IsIP(s) == 4 }

// IsIPv6 reports whether s is an IPv6 address.
func IsIPv6(s string) bool { return IsIP(s) == 6 }

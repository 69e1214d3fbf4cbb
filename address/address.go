// Package address provides the immutable socket address value shared by
// sockets, servers and block lists.
package address

import (
	"net"
	"net/netip"
	"strconv"
	"strings"

	tcperrors "github.com/wippyai/tcpnet/errors"
)

// Family is an IP address family.
type Family uint8

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	default:
		return "unknown"
	}
}

// Label returns the family in the form used by rule descriptions ("IPv4").
func (f Family) Label() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// Bits returns the address width of the family.
func (f Family) Bits() int {
	if f == IPv6 {
		return 128
	}
	return 32
}

// Valid reports whether f is IPv4 or IPv6.
func (f Family) Valid() bool {
	return f == IPv4 || f == IPv6
}

// ParseFamily accepts "ipv4", "ipv6" in any case, and "4" or "6".
func ParseFamily(s string) (Family, bool) {
	switch strings.ToLower(s) {
	case "ipv4", "4":
		return IPv4, true
	case "ipv6", "6":
		return IPv6, true
	}
	return 0, false
}

// FamilyOf reports the family of a parsed address. IPv4-mapped IPv6
// addresses are IPv6.
func FamilyOf(a netip.Addr) Family {
	if a.Is4() {
		return IPv4
	}
	return IPv6
}

// ParseAddr parses s strictly under family. IPv6 zones are dropped.
func ParseAddr(s string, family Family) (netip.Addr, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, tcperrors.InvalidAddress(tcperrors.PhaseConstruct, s, family.String())
	}
	switch family {
	case IPv4:
		if !a.Is4() {
			return netip.Addr{}, tcperrors.InvalidAddress(tcperrors.PhaseConstruct, s, family.String())
		}
	case IPv6:
		if !a.Is6() {
			return netip.Addr{}, tcperrors.InvalidAddress(tcperrors.PhaseConstruct, s, family.String())
		}
		a = a.WithZone("")
	default:
		return netip.Addr{}, tcperrors.New(tcperrors.PhaseConstruct, tcperrors.KindInvalidAddress).
			Address(s).
			Detail("unknown address family %d", family).
			Build()
	}
	return a, nil
}

// Options configures New. Zero values select the defaults: family IPv4,
// address 127.0.0.1 (or :: for IPv6), port 0.
type Options struct {
	Address   string
	Port      int
	Family    Family
	FlowLabel uint32
}

// SocketAddress is an immutable address/port/family/flow-label tuple.
// The zero value is not a valid address; use New or Parse.
type SocketAddress struct {
	addr      netip.Addr
	port      uint16
	family    Family
	flowLabel uint32
}

// New validates opts and builds a SocketAddress. The address is stored in
// canonical form, so Address may differ in text from opts.Address: IPv6 is
// lowercased and compressed ("2001:DB8:0::1" becomes "2001:db8::1") and
// zones are dropped. Port, family and flow label are kept as given.
func New(opts Options) (SocketAddress, error) {
	family := opts.Family
	if family == 0 {
		family = IPv4
	}
	if !family.Valid() {
		return SocketAddress{}, tcperrors.New(tcperrors.PhaseConstruct, tcperrors.KindInvalidAddress).
			Detail("unknown address family %d", family).
			Build()
	}

	host := opts.Address
	if host == "" {
		if family == IPv6 {
			host = "::"
		} else {
			host = "127.0.0.1"
		}
	}

	a, err := ParseAddr(host, family)
	if err != nil {
		return SocketAddress{}, err
	}

	if opts.Port < 0 || opts.Port > 65535 {
		return SocketAddress{}, tcperrors.InvalidPort(tcperrors.PhaseConstruct, opts.Port)
	}

	if family == IPv4 && opts.FlowLabel != 0 {
		return SocketAddress{}, tcperrors.New(tcperrors.PhaseConstruct, tcperrors.KindInvalidAddress).
			Address(host).
			Detail("flow label is only valid for ipv6").
			Value(opts.FlowLabel).
			Build()
	}

	return SocketAddress{
		addr:      a,
		port:      uint16(opts.Port),
		family:    family,
		flowLabel: opts.FlowLabel,
	}, nil
}

// Parse builds a SocketAddress from "host:port" or "[v6]:port". The family
// is inferred from the host. A missing port means port 0.
func Parse(s string) (SocketAddress, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		host, portStr = strings.Trim(s, "[]"), "0"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return SocketAddress{}, tcperrors.New(tcperrors.PhaseConstruct, tcperrors.KindInvalidAddress).
			Address(s).
			Detail("invalid port %q", portStr).
			Build()
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return SocketAddress{}, tcperrors.InvalidAddress(tcperrors.PhaseConstruct, host, "ip")
	}
	return New(Options{Address: a.WithZone("").String(), Port: port, Family: FamilyOf(a)})
}

// FromAddrPort converts a netip.AddrPort. IPv4-mapped IPv6 addresses are
// unmapped so the result carries the IPv4 family.
func FromAddrPort(ap netip.AddrPort) (SocketAddress, error) {
	a := ap.Addr().Unmap()
	if !a.IsValid() {
		return SocketAddress{}, tcperrors.InvalidAddress(tcperrors.PhaseConstruct, ap.String(), "ip")
	}
	return SocketAddress{
		addr:   a.WithZone(""),
		port:   ap.Port(),
		family: FamilyOf(a),
	}, nil
}

// FromNetAddr converts a *net.TCPAddr or any net.Addr whose String is
// "host:port".
func FromNetAddr(na net.Addr) (SocketAddress, error) {
	if na == nil {
		return SocketAddress{}, tcperrors.InvalidAddress(tcperrors.PhaseConstruct, "", "ip")
	}
	if tcp, ok := na.(*net.TCPAddr); ok {
		return FromAddrPort(tcp.AddrPort())
	}
	ap, err := netip.ParseAddrPort(na.String())
	if err != nil {
		return SocketAddress{}, tcperrors.InvalidAddress(tcperrors.PhaseConstruct, na.String(), "ip")
	}
	return FromAddrPort(ap)
}

func (s SocketAddress) Address() string   { return s.addr.String() }
func (s SocketAddress) Port() uint16      { return s.port }
func (s SocketAddress) Family() Family    { return s.family }
func (s SocketAddress) FlowLabel() uint32 { return s.flowLabel }
func (s SocketAddress) Addr() netip.Addr  { return s.addr }

// AddrPort returns the address as a netip.AddrPort.
func (s SocketAddress) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(s.addr, s.port)
}

// IsValid reports whether s was built by a constructor.
func (s SocketAddress) IsValid() bool {
	return s.addr.IsValid()
}

// Equal reports structural equality.
func (s SocketAddress) Equal(o SocketAddress) bool {
	return s == o
}

// String returns "host:port", bracketing IPv6 hosts.
func (s SocketAddress) String() string {
	return net.JoinHostPort(s.addr.String(), strconv.Itoa(int(s.port)))
}

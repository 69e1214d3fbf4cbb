// Package blocklist implements an ordered list of address, range and subnet
// rules used to decide whether a peer is disallowed.
//
// A BlockList is built during a single-writer setup phase. Once mutation has
// stopped, Check and Rules may be called from any number of goroutines. The
// list itself does not lock.
package blocklist

import (
	"net/netip"
	"strings"

	"github.com/wippyai/tcpnet/address"
	tcperrors "github.com/wippyai/tcpnet/errors"
)

// BlockList holds rules in insertion order.
type BlockList struct {
	rules []Rule
}

// New returns an empty BlockList.
func New() *BlockList {
	return &BlockList{}
}

// AddAddress blocks a single address.
func (b *BlockList) AddAddress(addr string, family address.Family) error {
	a, err := address.ParseAddr(addr, family)
	if err != nil {
		return err
	}
	b.rules = append(b.rules, AddressRule{Fam: family, Address: a})
	return nil
}

// AddRange blocks every address from start to end inclusive.
func (b *BlockList) AddRange(start, end string, family address.Family) error {
	s, err := address.ParseAddr(start, family)
	if err != nil {
		return err
	}
	e, err := address.ParseAddr(end, family)
	if err != nil {
		return err
	}
	if s.Compare(e) > 0 {
		return tcperrors.InvalidRange(start, end)
	}
	b.rules = append(b.rules, RangeRule{Fam: family, Start: s, End: e})
	return nil
}

// AddSubnet blocks every address whose leading prefixLength bits equal
// network's.
func (b *BlockList) AddSubnet(network string, prefixLength int, family address.Family) error {
	a, err := address.ParseAddr(network, family)
	if err != nil {
		return err
	}
	if prefixLength < 0 || prefixLength > family.Bits() {
		return tcperrors.InvalidPrefixLength(prefixLength, family.Bits())
	}
	p, err := a.Prefix(prefixLength)
	if err != nil {
		return tcperrors.New(tcperrors.PhaseConstruct, tcperrors.KindInvalidPrefixLength).
			Address(network).
			Value(prefixLength).
			Cause(err).
			Build()
	}
	b.rules = append(b.rules, SubnetRule{Fam: family, Network: p})
	return nil
}

// Check reports whether addr matches any rule of the same family. An
// address that does not parse as family never matches. IPv4-mapped IPv6
// addresses are IPv6 and are not compared against IPv4 rules.
func (b *BlockList) Check(addr string, family address.Family) bool {
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}
	a, err := address.ParseAddr(addr, family)
	if err != nil {
		return false
	}
	return b.match(a, family)
}

// CheckAddress is Check for an already validated address.
func (b *BlockList) CheckAddress(sa address.SocketAddress) bool {
	if !sa.IsValid() {
		return false
	}
	return b.match(sa.Addr(), sa.Family())
}

// CheckAddr checks a parsed address, taking the family from the address.
func (b *BlockList) CheckAddr(a netip.Addr) bool {
	if !a.IsValid() {
		return false
	}
	a = a.WithZone("")
	return b.match(a, address.FamilyOf(a))
}

func (b *BlockList) match(a netip.Addr, family address.Family) bool {
	for _, r := range b.rules {
		if r.Family() != family {
			continue
		}
		if r.Match(a) {
			return true
		}
	}
	return false
}

// Rules returns a copy of the rules in insertion order.
func (b *BlockList) Rules() []Rule {
	out := make([]Rule, len(b.rules))
	copy(out, b.rules)
	return out
}

// Len returns the number of rules.
func (b *BlockList) Len() int {
	return len(b.rules)
}

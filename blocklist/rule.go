package blocklist

import (
	"fmt"
	"net/netip"

	"github.com/wippyai/tcpnet/address"
)

// Rule is one entry of a BlockList. The set of variants is closed:
// AddressRule, RangeRule and SubnetRule.
type Rule interface {
	// Family is the address family the rule applies to.
	Family() address.Family
	// Match reports whether a, already known to be of the rule's family,
	// is covered by the rule.
	Match(a netip.Addr) bool
	String() string

	rule()
}

// AddressRule matches exactly one address.
type AddressRule struct {
	Fam     address.Family
	Address netip.Addr
}

func (r AddressRule) Family() address.Family  { return r.Fam }
func (r AddressRule) Match(a netip.Addr) bool { return a == r.Address }
func (r AddressRule) rule()                   {}

func (r AddressRule) String() string {
	return fmt.Sprintf("Address: %s %s", r.Fam.Label(), r.Address)
}

// RangeRule matches every address in [Start, End]. Start <= End.
type RangeRule struct {
	Fam   address.Family
	Start netip.Addr
	End   netip.Addr
}

func (r RangeRule) Family() address.Family { return r.Fam }
func (r RangeRule) rule()                  {}

func (r RangeRule) Match(a netip.Addr) bool {
	return r.Start.Compare(a) <= 0 && a.Compare(r.End) <= 0
}

func (r RangeRule) String() string {
	return fmt.Sprintf("Range: %s %s-%s", r.Fam.Label(), r.Start, r.End)
}

// SubnetRule matches every address sharing Network's leading bits. Network
// is always stored masked.
type SubnetRule struct {
	Fam     address.Family
	Network netip.Prefix
}

func (r SubnetRule) Family() address.Family  { return r.Fam }
func (r SubnetRule) Match(a netip.Addr) bool { return r.Network.Contains(a) }
func (r SubnetRule) PrefixLength() int       { return r.Network.Bits() }
func (r SubnetRule) rule()                   {}

func (r SubnetRule) String() string {
	return fmt.Sprintf("Subnet: %s %s", r.Fam.Label(), r.Network)
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/tcpnet"
	"github.com/wippyai/tcpnet/address"
	"github.com/wippyai/tcpnet/blocklist"
)

// buildBlockList parses rules of the forms "addr", "start-end" and
// "network/prefix". The family of each rule follows its address.
func buildBlockList(rules []string) (*blocklist.BlockList, error) {
	bl := blocklist.New()
	for _, r := range rules {
		if err := addRule(bl, r); err != nil {
			return nil, fmt.Errorf("rule %q: %w", r, err)
		}
	}
	return bl, nil
}

func addRule(bl *blocklist.BlockList, rule string) error {
	rule = strings.TrimSpace(rule)

	if network, bits, ok := strings.Cut(rule, "/"); ok {
		prefix, err := strconv.Atoi(bits)
		if err != nil {
			return fmt.Errorf("invalid prefix length %q", bits)
		}
		fam, err := familyOf(network)
		if err != nil {
			return err
		}
		return bl.AddSubnet(network, prefix, fam)
	}

	if start, end, ok := strings.Cut(rule, "-"); ok {
		start, end = strings.TrimSpace(start), strings.TrimSpace(end)
		fam, err := familyOf(start)
		if err != nil {
			return err
		}
		return bl.AddRange(start, end, fam)
	}

	fam, err := familyOf(rule)
	if err != nil {
		return err
	}
	return bl.AddAddress(rule, fam)
}

func familyOf(s string) (address.Family, error) {
	switch tcpnet.IsIP(s) {
	case 4:
		return address.IPv4, nil
	case 6:
		return address.IPv6, nil
	default:
		return 0, fmt.Errorf("not an IP address: %q", s)
	}
}

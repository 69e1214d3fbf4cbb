package address

import (
	"errors"
	"net"
	"net/netip"
	"testing"

	tcperrors "github.com/wippyai/tcpnet/errors"
)

func TestNew_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		addr      string
		port      int
		family    Family
		flowLabel uint32
	}{
		{"ipv4 loopback", "127.0.0.1", 8080, IPv4, 0},
		{"ipv4 zero port", "10.1.2.3", 0, IPv4, 0},
		{"ipv4 max port", "255.255.255.255", 65535, IPv4, 0},
		{"ipv6 loopback", "::1", 443, IPv6, 0},
		{"ipv6 flow label", "2001:db8::1", 9000, IPv6, 0xabcde},
		{"ipv6 unspecified", "::", 1, IPv6, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa, err := New(Options{Address: tt.addr, Port: tt.port, Family: tt.family, FlowLabel: tt.flowLabel})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if sa.Address() != tt.addr {
				t.Errorf("Address() = %q, want %q", sa.Address(), tt.addr)
			}
			if int(sa.Port()) != tt.port {
				t.Errorf("Port() = %d, want %d", sa.Port(), tt.port)
			}
			if sa.Family() != tt.family {
				t.Errorf("Family() = %v, want %v", sa.Family(), tt.family)
			}
			if sa.FlowLabel() != tt.flowLabel {
				t.Errorf("FlowLabel() = %d, want %d", sa.FlowLabel(), tt.flowLabel)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	sa, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if sa.Address() != "127.0.0.1" || sa.Port() != 0 || sa.Family() != IPv4 {
		t.Errorf("defaults = %s %v, want 127.0.0.1:0 ipv4", sa, sa.Family())
	}

	sa6, err := New(Options{Family: IPv6})
	if err != nil {
		t.Fatalf("New ipv6: %v", err)
	}
	if sa6.Address() != "::" {
		t.Errorf("ipv6 default address = %q, want ::", sa6.Address())
	}
}

func TestNew_CanonicalAddress(t *testing.T) {
	tests := []struct {
		in     string
		family Family
		want   string
	}{
		{"2001:DB8::1", IPv6, "2001:db8::1"},
		{"2001:db8:0:0:0:0:0:1", IPv6, "2001:db8::1"},
		{"fe80::1%eth0", IPv6, "fe80::1"},
		{"0:0:0:0:0:0:0:0", IPv6, "::"},
		{"10.0.0.1", IPv4, "10.0.0.1"},
	}

	for _, tt := range tests {
		sa, err := New(Options{Address: tt.in, Port: 80, Family: tt.family})
		if err != nil {
			t.Fatalf("New(%q): %v", tt.in, err)
		}
		if sa.Address() != tt.want {
			t.Errorf("New(%q).Address() = %q, want %q", tt.in, sa.Address(), tt.want)
		}
		if sa.Port() != 80 || sa.Family() != tt.family {
			t.Errorf("New(%q) = %s %v", tt.in, sa, sa.Family())
		}
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"garbage", Options{Address: "not-an-ip", Family: IPv4}},
		{"ipv6 under ipv4", Options{Address: "::1", Family: IPv4}},
		{"ipv4 under ipv6", Options{Address: "1.2.3.4", Family: IPv6}},
		{"mapped under ipv4", Options{Address: "::ffff:1.2.3.4", Family: IPv4}},
		{"octet overflow", Options{Address: "10.0.0.256", Family: IPv4}},
		{"negative port", Options{Address: "1.2.3.4", Port: -1}},
		{"port overflow", Options{Address: "1.2.3.4", Port: 65536}},
		{"flow label on ipv4", Options{Address: "1.2.3.4", FlowLabel: 1}},
		{"unknown family", Options{Address: "1.2.3.4", Family: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tcperrors.ErrInvalidAddress) {
				t.Errorf("error %v is not InvalidAddress", err)
			}
		})
	}
}

func TestSocketAddress_Equal(t *testing.T) {
	a, _ := New(Options{Address: "10.0.0.1", Port: 80})
	b, _ := New(Options{Address: "10.0.0.1", Port: 80})
	c, _ := New(Options{Address: "10.0.0.1", Port: 81})

	if !a.Equal(b) || a != b {
		t.Error("identical addresses should be equal")
	}
	if a.Equal(c) {
		t.Error("different ports should not be equal")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		addr   string
		port   uint16
		family Family
	}{
		{"127.0.0.1:80", "127.0.0.1", 80, IPv4},
		{"[::1]:8080", "::1", 8080, IPv6},
		{"10.0.0.1", "10.0.0.1", 0, IPv4},
		{"[fe80::1%eth0]:22", "fe80::1", 22, IPv6},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sa, err := Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if sa.Address() != tt.addr || sa.Port() != tt.port || sa.Family() != tt.family {
				t.Errorf("Parse(%q) = %s/%v, want %s:%d/%v", tt.in, sa, sa.Family(), tt.addr, tt.port, tt.family)
			}
		})
	}

	for _, bad := range []string{"host:80", "1.2.3.4:http", "[::1]:99999"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) should fail", bad)
		}
	}
}

func TestString(t *testing.T) {
	sa, _ := New(Options{Address: "2001:db8::1", Port: 443, Family: IPv6})
	if got := sa.String(); got != "[2001:db8::1]:443" {
		t.Errorf("String() = %q", got)
	}
}

func TestFromNetAddr(t *testing.T) {
	mapped := &net.TCPAddr{IP: net.ParseIP("192.168.1.1"), Port: 1234}
	sa, err := FromNetAddr(mapped)
	if err != nil {
		t.Fatalf("FromNetAddr: %v", err)
	}
	if sa.Family() != IPv4 || sa.Address() != "192.168.1.1" || sa.Port() != 1234 {
		t.Errorf("FromNetAddr = %s %v", sa, sa.Family())
	}

	sa6, err := FromAddrPort(netip.MustParseAddrPort("[::1]:5"))
	if err != nil {
		t.Fatalf("FromAddrPort: %v", err)
	}
	if sa6.Family() != IPv6 {
		t.Errorf("family = %v, want ipv6", sa6.Family())
	}

	if _, err := FromNetAddr(nil); err == nil {
		t.Error("nil addr should fail")
	}
}

func TestParseFamily(t *testing.T) {
	for in, want := range map[string]Family{"ipv4": IPv4, "IPv6": IPv6, "4": IPv4, "6": IPv6} {
		got, ok := ParseFamily(in)
		if !ok || got != want {
			t.Errorf("ParseFamily(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParseFamily("ipx"); ok {
		t.Error("ParseFamily(ipx) should fail")
	}
}

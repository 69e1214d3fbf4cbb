package tcp

import (
	"context"
	"net"
	"net/netip"
	"testing"

	"github.com/wippyai/tcpnet/address"
)

func TestSharedResolver_Literal(t *testing.T) {
	r := NewResolver(nil)
	addrs, err := r.LookupNetIP(context.Background(), "ip4", "127.0.0.1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(addrs) != 1 || addrs[0].Unmap() != netip.MustParseAddr("127.0.0.1") {
		t.Errorf("unexpected addresses %v", addrs)
	}
}

func TestNetTransport_DialLocal(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	tr := &NetTransport{}
	conn, err := tr.Dial(context.Background(), "tcp4", "127.0.0.1:0", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	local := conn.LocalAddr().(*net.TCPAddr)
	if !local.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Errorf("expected loopback local address, got %s", local)
	}
}

func TestNetTransport_DialBadLocal(t *testing.T) {
	tr := &NetTransport{}
	if _, err := tr.Dial(context.Background(), "tcp4", "not-an-address", "127.0.0.1:1"); err == nil {
		t.Error("expected invalid local address to fail")
	}
}

func TestConnectOptions_Network(t *testing.T) {
	tests := []struct {
		family  address.Family
		network string
		lookup  string
	}{
		{0, "tcp", "ip"},
		{address.IPv4, "tcp4", "ip4"},
		{address.IPv6, "tcp6", "ip6"},
	}

	for _, tt := range tests {
		o := ConnectOptions{Family: tt.family}
		if got := o.network(); got != tt.network {
			t.Errorf("family %d: expected %s, got %s", tt.family, tt.network, got)
		}
		if got := o.lookupNetwork(); got != tt.lookup {
			t.Errorf("family %d: expected %s, got %s", tt.family, tt.lookup, got)
		}
	}
}

func TestListenOptions_Network(t *testing.T) {
	tests := []struct {
		opts ListenOptions
		want string
	}{
		{ListenOptions{}, "tcp"},
		{ListenOptions{Host: "127.0.0.1"}, "tcp4"},
		{ListenOptions{Host: "::1"}, "tcp6"},
		{ListenOptions{Host: "localhost"}, "tcp"},
		{ListenOptions{IPv6Only: true}, "tcp6"},
	}

	for _, tt := range tests {
		if got := tt.opts.network(); got != tt.want {
			t.Errorf("%+v: expected %s, got %s", tt.opts, tt.want, got)
		}
	}
}

func TestOptions_Defaults(t *testing.T) {
	so := SocketOptions{}.withDefaults()
	if so.Loop == nil || so.Transport == nil || so.Resolver == nil || so.Metrics == nil || so.Logger == nil {
		t.Fatalf("expected defaults to be filled, got %+v", so)
	}
	if so.HighWaterMark != DefaultHighWaterMark || so.ReadBufferSize != DefaultReadBufferSize {
		t.Errorf("unexpected buffer defaults %d %d", so.HighWaterMark, so.ReadBufferSize)
	}

	srv := ServerOptions{MaxConnections: -1, HighWaterMark: 10}.withDefaults()
	if srv.MaxConnections != 0 {
		t.Errorf("expected negative limit to mean none, got %d", srv.MaxConnections)
	}
	sock := srv.socketOptions()
	if sock.Loop != srv.Loop {
		t.Error("expected accepted sockets to share the server loop")
	}
	if sock.HighWaterMark != 10 {
		t.Errorf("expected high-water mark to carry over, got %d", sock.HighWaterMark)
	}
}

func TestDropPolicy_String(t *testing.T) {
	if DropDestroy.String() != "destroy" || DropDefer.String() != "defer" {
		t.Errorf("unexpected names %s %s", DropDestroy, DropDefer)
	}
}

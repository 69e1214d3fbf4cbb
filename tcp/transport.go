package tcp

import (
	"context"
	"net"
	"net/netip"

	"golang.org/x/sync/singleflight"
)

// Transport opens connections and listeners. Sockets and servers only
// reach the network through it.
type Transport interface {
	// Dial connects to remote, optionally from local. Both are
	// "host:port" strings; local may be empty.
	Dial(ctx context.Context, network, local, remote string) (net.Conn, error)

	// Listen binds addr.
	Listen(ctx context.Context, network, addr string, opts ListenOptions) (net.Listener, error)
}

// NetTransport is the Transport over the net package. Keep-alive is left
// to the socket's own settings.
type NetTransport struct {
	Dialer       net.Dialer
	ListenConfig net.ListenConfig
}

// DefaultTransport is used when options leave Transport nil.
var DefaultTransport Transport = &NetTransport{
	Dialer:       net.Dialer{KeepAlive: -1},
	ListenConfig: net.ListenConfig{KeepAlive: -1},
}

func (t *NetTransport) Dial(ctx context.Context, network, local, remote string) (net.Conn, error) {
	d := t.Dialer
	if local != "" {
		la, err := net.ResolveTCPAddr(network, local)
		if err != nil {
			return nil, err
		}
		d.LocalAddr = la
	}
	return d.DialContext(ctx, network, remote)
}

func (t *NetTransport) Listen(ctx context.Context, network, addr string, _ ListenOptions) (net.Listener, error) {
	lc := t.ListenConfig
	return lc.Listen(ctx, network, addr)
}

// Resolver resolves host names for Connect.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// SharedResolver collapses concurrent lookups of the same host into one
// query.
type SharedResolver struct {
	Resolver *net.Resolver
	group    singleflight.Group
}

// NewResolver wraps r, or net.DefaultResolver when r is nil.
func NewResolver(r *net.Resolver) *SharedResolver {
	if r == nil {
		r = net.DefaultResolver
	}
	return &SharedResolver{Resolver: r}
}

// DefaultResolver is used when options leave Resolver nil.
var DefaultResolver Resolver = NewResolver(nil)

func (r *SharedResolver) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	v, err, _ := r.group.Do(network+"/"+host, func() (any, error) {
		return r.Resolver.LookupNetIP(ctx, network, host)
	})
	if err != nil {
		return nil, err
	}
	addrs := v.([]netip.Addr)
	out := make([]netip.Addr, len(addrs))
	copy(out, addrs)
	return out, nil
}

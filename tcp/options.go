package tcp

import (
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/tcpnet/address"
	"github.com/wippyai/tcpnet/blocklist"
	"github.com/wippyai/tcpnet/loop"
	"github.com/wippyai/tcpnet/metrics"
)

const (
	// DefaultHighWaterMark is the send buffer size above which Write
	// reports backpressure (16 KB).
	DefaultHighWaterMark = 16 * 1024

	// DefaultReadBufferSize bounds the bytes held for a paused socket
	// before reading from the connection stops (64 KB).
	DefaultReadBufferSize = 64 * 1024

	// DefaultHost is dialed when ConnectOptions.Host is empty.
	DefaultHost = "localhost"

	readChunkSize = 16 * 1024
)

// SocketOptions configures a Socket. Zero values select the defaults.
type SocketOptions struct {
	// Loop runs the socket's callbacks. Each socket gets its own loop
	// when nil.
	Loop *loop.Loop

	// Transport opens connections (default: NetTransport).
	Transport Transport

	// Resolver resolves non-literal hosts (default: DefaultResolver).
	Resolver Resolver

	// AllowHalfOpen keeps the write side open after the peer ends. When
	// false the socket ends its own side as soon as the peer's end has
	// been delivered.
	AllowHalfOpen bool

	// HighWaterMark is the backpressure threshold (default: 16 KB).
	HighWaterMark int

	// ReadBufferSize bounds the paused receive backlog (default: 64 KB).
	ReadBufferSize int

	// Metrics receives traffic figures (default: metrics.Nop).
	Metrics metrics.Recorder

	// Logger overrides the package logger.
	Logger *zap.Logger
}

func (o SocketOptions) withDefaults() SocketOptions {
	if o.Loop == nil {
		o.Loop = loop.New()
	}
	if o.Transport == nil {
		o.Transport = DefaultTransport
	}
	if o.Resolver == nil {
		o.Resolver = DefaultResolver
	}
	if o.HighWaterMark <= 0 {
		o.HighWaterMark = DefaultHighWaterMark
	}
	if o.ReadBufferSize <= 0 {
		o.ReadBufferSize = DefaultReadBufferSize
	}
	o.Metrics = metrics.OrNop(o.Metrics)
	o.Logger = loggerOr(o.Logger)
	return o
}

// ConnectOptions describes an outbound connection.
type ConnectOptions struct {
	// Host is an IP literal or a name to resolve (default: "localhost").
	Host string

	// Port is required, 1 through 65535.
	Port int

	// Family restricts resolution and dialing to one family. Zero means
	// either.
	Family address.Family

	// LocalAddress and LocalPort bind the outbound side.
	LocalAddress string
	LocalPort    int

	// Timeout bounds lookup plus dial. Zero means no limit.
	Timeout time.Duration

	// KeepAlive enables TCP keep-alive probes once connected.
	KeepAlive             bool
	KeepAliveInitialDelay time.Duration

	// NoDelay disables Nagle's algorithm. Nil keeps the socket's setting,
	// which defaults to true.
	NoDelay *bool
}

func (o ConnectOptions) network() string {
	switch o.Family {
	case address.IPv4:
		return "tcp4"
	case address.IPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

func (o ConnectOptions) lookupNetwork() string {
	switch o.Family {
	case address.IPv4:
		return "ip4"
	case address.IPv6:
		return "ip6"
	default:
		return "ip"
	}
}

// DropPolicy selects what a server does with connections over
// MaxConnections.
type DropPolicy uint8

const (
	// DropDestroy accepts the connection and closes it at once.
	DropDestroy DropPolicy = iota
	// DropDefer stops accepting at the limit so peers wait in the
	// kernel backlog.
	DropDefer
)

func (p DropPolicy) String() string {
	switch p {
	case DropDestroy:
		return "destroy"
	case DropDefer:
		return "defer"
	default:
		return "unknown"
	}
}

// ServerOptions configures a Server and the sockets it accepts.
type ServerOptions struct {
	// Loop runs the server's callbacks and those of every accepted
	// socket (default: a new loop).
	Loop *loop.Loop

	// Transport opens the listener (default: NetTransport).
	Transport Transport

	// MaxConnections caps live accepted sockets. Zero means no limit.
	MaxConnections int

	// DropPolicy applies when MaxConnections is reached (default:
	// DropDestroy).
	DropPolicy DropPolicy

	// BlockList drops peers whose remote address it matches.
	BlockList *blocklist.BlockList

	// PauseOnConnect delivers accepted sockets paused.
	PauseOnConnect bool

	// AllowHalfOpen is passed to accepted sockets.
	AllowHalfOpen bool

	// NoDelay is applied to accepted sockets (default: true).
	NoDelay *bool

	// KeepAlive is applied to accepted sockets.
	KeepAlive             bool
	KeepAliveInitialDelay time.Duration

	// HighWaterMark and ReadBufferSize are passed to accepted sockets.
	HighWaterMark  int
	ReadBufferSize int

	// Metrics receives server and accepted socket figures.
	Metrics metrics.Recorder

	// Logger overrides the package logger.
	Logger *zap.Logger
}

func (o ServerOptions) withDefaults() ServerOptions {
	if o.Loop == nil {
		o.Loop = loop.New()
	}
	if o.Transport == nil {
		o.Transport = DefaultTransport
	}
	if o.MaxConnections < 0 {
		o.MaxConnections = 0
	}
	o.Metrics = metrics.OrNop(o.Metrics)
	o.Logger = loggerOr(o.Logger)
	return o
}

func (o ServerOptions) socketOptions() SocketOptions {
	return SocketOptions{
		Loop:           o.Loop,
		Transport:      o.Transport,
		AllowHalfOpen:  o.AllowHalfOpen,
		HighWaterMark:  o.HighWaterMark,
		ReadBufferSize: o.ReadBufferSize,
		Metrics:        o.Metrics,
		Logger:         o.Logger,
	}
}

// ListenOptions describes where a server binds.
type ListenOptions struct {
	// Host is the local address; empty binds every interface.
	Host string

	// Port to bind; zero picks an ephemeral port.
	Port int

	// Backlog is recorded for parity with other runtimes. Go listeners
	// use the operating system default.
	Backlog int

	// IPv6Only restricts an IPv6 wildcard listener to IPv6 peers.
	IPv6Only bool
}

func (o ListenOptions) network() string {
	if o.IPv6Only {
		return "tcp6"
	}
	if o.Host == "" {
		return "tcp"
	}
	if ip, err := netip.ParseAddr(o.Host); err == nil {
		if address.FamilyOf(ip.Unmap()) == address.IPv4 {
			return "tcp4"
		}
		return "tcp6"
	}
	return "tcp"
}

// Bool returns a pointer to v, for the optional NoDelay fields.
func Bool(v bool) *bool {
	return &v
}

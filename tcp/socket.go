package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/tcpnet/address"
	"github.com/wippyai/tcpnet/codec"
	tcperrors "github.com/wippyai/tcpnet/errors"
	"github.com/wippyai/tcpnet/event"
	"github.com/wippyai/tcpnet/loop"
	"github.com/wippyai/tcpnet/metrics"
)

// Socket is a stream connection driven by its Loop.
//
// Socket methods are not safe for concurrent use. Call them from event
// handlers, which run on the socket's loop, or hand the work to the loop
// with Loop().Post or Loop().Do. Network I/O happens on helper goroutines
// that report back through the loop.
type Socket struct {
	loop      *loop.Loop
	transport Transport
	resolver  Resolver
	metrics   metrics.Recorder
	logger    *zap.Logger
	dir       metrics.Direction

	allowHalfOpen bool
	hwm           int
	readBufSize   int

	state State
	// gen changes on Destroy; completions carrying an older value are
	// discarded.
	gen         uint64
	conn        net.Conn
	local       address.SocketAddress
	remote      address.SocketAddress
	hadError    bool
	cancelDial  context.CancelFunc
	onConnected func()
	endPending  bool
	endPendData []byte
	endPendCbs  []func()

	keepAlive      bool
	keepAliveDelay time.Duration
	noDelay        bool

	encoding codec.Encoding
	decoder  codec.Decoder

	queue         []writeReq
	queuedBytes   int
	inflight      int
	writing       bool
	needDrain     bool
	writeErr      error
	ending        bool
	writeFinished bool
	endCallbacks  []func()

	rx        *receiver
	paused    bool
	readEnded bool

	bytesRead    uint64
	bytesWritten uint64

	timeout    time.Duration
	timer      *loop.Timer
	timeoutSub event.Subscription

	onRelease func()

	connectEv event.Signal
	readyEv   event.Signal
	lookupEv  event.Stream[Lookup]
	dataEv    event.Stream[Data]
	drainEv   event.Signal
	endEv     event.Signal
	timeoutEv event.Signal
	errorEv   event.Stream[error]
	closeEv   event.Stream[bool]
}

// NewSocket creates an unconnected socket.
func NewSocket(opts SocketOptions) *Socket {
	opts = opts.withDefaults()
	return &Socket{
		loop:          opts.Loop,
		transport:     opts.Transport,
		resolver:      opts.Resolver,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		dir:           metrics.Outbound,
		allowHalfOpen: opts.AllowHalfOpen,
		hwm:           opts.HighWaterMark,
		readBufSize:   opts.ReadBufferSize,
		noDelay:       true,
	}
}

// CreateConnection creates a socket and starts connecting it. onConnect,
// when not nil, runs once after the connect event.
func CreateConnection(opts ConnectOptions, sockOpts SocketOptions, onConnect func()) *Socket {
	s := NewSocket(sockOpts)
	s.Connect(opts, onConnect)
	return s
}

// Loop returns the loop the socket runs on.
func (s *Socket) Loop() *loop.Loop { return s.loop }

// Connect starts an outbound connection. It is ignored unless the socket
// is unconnected. Failures are reported through the error event and leave
// the socket unconnected; success emits connect, calls onConnected, then
// emits ready.
func (s *Socket) Connect(opts ConnectOptions, onConnected func()) {
	if s.state != StateUnconnected {
		return
	}
	s.hadError = false
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		err := tcperrors.InvalidPort(tcperrors.PhaseConnect, opts.Port)
		gen := s.gen
		s.loop.Post(func() {
			if gen == s.gen {
				s.reportError(err)
			}
		})
		return
	}

	if opts.KeepAlive {
		s.keepAlive = true
		s.keepAliveDelay = opts.KeepAliveInitialDelay
	}
	if opts.NoDelay != nil {
		s.noDelay = *opts.NoDelay
	}

	s.state = StateConnecting
	s.onConnected = onConnected
	s.dir = metrics.Outbound

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	s.cancelDial = cancel

	s.logger.Debug("connecting",
		zap.String("host", opts.Host),
		zap.Int("port", opts.Port),
		zap.Stringer("family", opts.Family))

	go s.dial(ctx, s.gen, opts)
}

// dial runs off the loop.
func (s *Socket) dial(ctx context.Context, gen uint64, opts ConnectOptions) {
	start := time.Now()
	ctx, span := tracer().Start(ctx, "tcp.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("net.peer.name", opts.Host),
			attribute.Int("net.peer.port", opts.Port),
		))

	target := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))

	ip, err := netip.ParseAddr(opts.Host)
	if err == nil {
		ip = ip.Unmap()
		if opts.Family != 0 && address.FamilyOf(ip) != opts.Family {
			err := tcperrors.InvalidAddress(tcperrors.PhaseConnect, opts.Host, opts.Family.String())
			endSpan(span, err)
			s.loop.Post(func() { s.connectDone(gen, nil, err, start) })
			return
		}
	} else {
		addrs, lerr := s.resolver.LookupNetIP(ctx, opts.lookupNetwork(), opts.Host)
		if lerr == nil && len(addrs) == 0 {
			lerr = &net.DNSError{Err: "no such host", Name: opts.Host, IsNotFound: true}
		}
		if lerr != nil {
			mapped := mapNetError(tcperrors.PhaseLookup, "lookup", opts.Host, lerr)
			endSpan(span, mapped)
			s.loop.Post(func() { s.connectDone(gen, nil, mapped, start) })
			return
		}
		ip = addrs[0].Unmap()
		lookup := Lookup{Host: opts.Host, Address: ip, Family: address.FamilyOf(ip)}
		s.loop.Post(func() {
			if gen == s.gen && s.state == StateConnecting {
				s.lookupEv.Emit(lookup)
			}
		})
		span.SetAttributes(attribute.String("net.peer.ip", ip.String()))
	}

	remote := netip.AddrPortFrom(ip, uint16(opts.Port)).String()
	var local string
	if opts.LocalAddress != "" || opts.LocalPort != 0 {
		local = net.JoinHostPort(opts.LocalAddress, strconv.Itoa(opts.LocalPort))
	}

	conn, err := s.transport.Dial(ctx, opts.network(), local, remote)
	if err != nil {
		mapped := mapNetError(tcperrors.PhaseConnect, "dial", target, err)
		endSpan(span, mapped)
		s.loop.Post(func() { s.connectDone(gen, nil, mapped, start) })
		return
	}
	endSpan(span, nil)
	s.loop.Post(func() { s.connectDone(gen, conn, nil, start) })
}

func (s *Socket) connectDone(gen uint64, conn net.Conn, err error, start time.Time) {
	if gen != s.gen || s.state != StateConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}

	if err != nil {
		s.state = StateUnconnected
		s.onConnected = nil
		s.endPending = false
		s.endPendData = nil
		s.endPendCbs = nil
		s.reportError(err)
		return
	}

	s.metrics.ConnectLatency(time.Since(start))
	s.attach(conn)
	s.metrics.ConnectionOpened(s.dir)
	s.logger.Debug("connected",
		zap.Stringer("local", s.local),
		zap.Stringer("remote", s.remote))
	s.touch()

	event.Fire(&s.connectEv)
	if cb := s.onConnected; cb != nil {
		s.onConnected = nil
		if gen == s.gen {
			cb()
		}
	}
	if gen != s.gen {
		return
	}
	event.Fire(&s.readyEv)

	if s.endPending && gen == s.gen {
		final, cbs := s.endPendData, s.endPendCbs
		s.endPending = false
		s.endPendData = nil
		s.endPendCbs = nil
		s.End(final, nil)
		s.endCallbacks = append(s.endCallbacks, cbs...)
	}
}

// attach takes ownership of an established connection.
func (s *Socket) attach(conn net.Conn) {
	s.conn = conn
	if la, err := address.FromNetAddr(conn.LocalAddr()); err == nil {
		s.local = la
	}
	if ra, err := address.FromNetAddr(conn.RemoteAddr()); err == nil {
		s.remote = ra
	}
	s.state = StateConnected
	s.applyNoDelay()
	s.applyKeepAlive()

	gen := s.gen
	s.rx = newReceiver(conn, s.readBufSize, func() {
		s.loop.Post(func() { s.onReadable(gen) })
	})
	go s.rx.run()
}

// Destroy tears the socket down at once. Unflushed writes are discarded
// and their callbacks never run. The error event (when err is not nil) and
// then the close event follow on the loop. Later calls do nothing.
func (s *Socket) Destroy(err error) {
	if s.state == StateDestroyed {
		return
	}
	s.state = StateDestroyed
	s.gen++

	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	s.stopTimer()
	s.timeoutSub.Cancel()

	s.queue = nil
	s.queuedBytes = 0
	s.inflight = 0
	s.writing = false
	s.needDrain = false
	s.endCallbacks = nil
	s.endPendData = nil
	s.endPendCbs = nil
	s.onConnected = nil

	if s.rx != nil {
		s.rx.close()
	}
	opened := s.conn != nil
	if opened {
		if cerr := s.conn.Close(); cerr != nil && !isClosedConn(cerr) {
			s.logger.Debug("close failed", zap.Error(cerr))
		}
	}
	if err != nil {
		s.hadError = true
	}

	s.logger.Debug("destroyed",
		zap.Stringer("remote", s.remote),
		zap.Bool("had_error", s.hadError),
		zap.Uint64("bytes_read", s.bytesRead),
		zap.Uint64("bytes_written", s.bytesWritten))

	s.loop.Post(func() {
		if err != nil {
			s.errorEv.Emit(err)
		}
		s.closeEv.Emit(s.hadError)
		if opened {
			s.metrics.ConnectionClosed(s.dir, s.hadError)
		}
		if s.onRelease != nil {
			s.onRelease()
			s.onRelease = nil
		}
	})
}

// Drop destroys the socket without an error when its server's connection
// table lets go of it.
func (s *Socket) Drop() {
	s.onRelease = nil
	s.Destroy(nil)
}

// emitError reports a runtime failure without tearing the socket down.
// The failure is remembered for the close event.
func (s *Socket) emitError(err error) {
	s.hadError = true
	s.reportError(err)
}

// reportError emits err without marking the socket. Connect failures use
// it directly since the socket returns to unconnected and may connect
// again.
func (s *Socket) reportError(err error) {
	phase := tcperrors.PhaseConnect
	var te *tcperrors.Error
	if errors.As(err, &te) && te.Phase != "" {
		phase = te.Phase
	}
	s.metrics.TransportError(string(phase))
	s.logger.Warn("socket error",
		zap.Stringer("remote", s.remote),
		zap.Error(err))
	s.errorEv.Emit(err)
}

// Pause stops data delivery. Incoming bytes are buffered up to
// ReadBufferSize, then reading stops.
func (s *Socket) Pause() {
	s.paused = true
}

// Resume restarts data delivery, beginning with anything buffered.
func (s *Socket) Resume() {
	if !s.paused {
		return
	}
	s.paused = false
	gen := s.gen
	s.loop.Post(func() {
		if gen == s.gen {
			s.deliver()
		}
	})
}

// IsPaused reports whether delivery is paused.
func (s *Socket) IsPaused() bool { return s.paused }

func (s *Socket) onReadable(gen uint64) {
	if gen != s.gen || s.rx == nil {
		return
	}
	s.rx.rearm()
	s.deliver()
}

func (s *Socket) deliver() {
	gen := s.gen
	for gen == s.gen && !s.paused && !s.readEnded && s.rx != nil {
		p, err := s.rx.take(readChunkSize * 4)
		if len(p) > 0 {
			s.bytesRead += uint64(len(p))
			s.metrics.BytesRead(len(p))
			s.touch()
			s.emitData(p)
			continue
		}
		if err != nil {
			s.onReadEnd(err)
		}
		return
	}
}

func (s *Socket) emitData(p []byte) {
	if s.decoder == nil {
		s.dataEv.Emit(rawData(p))
		return
	}
	if text := s.decoder.Decode(p); text != "" {
		s.dataEv.Emit(textData(text))
	}
}

func (s *Socket) onReadEnd(err error) {
	s.readEnded = true
	gen := s.gen

	if !errors.Is(err, io.EOF) {
		if !isClosedConn(err) {
			s.emitError(mapNetError(tcperrors.PhaseRead, "read", s.remote.String(), err))
		}
		return
	}

	if s.decoder != nil {
		if rest := s.decoder.Flush(); rest != "" {
			s.dataEv.Emit(textData(rest))
		}
	}
	if gen != s.gen {
		return
	}
	s.logger.Debug("peer ended", zap.Stringer("remote", s.remote))
	event.Fire(&s.endEv)
	if gen != s.gen {
		return
	}

	if !s.allowHalfOpen && !s.ending {
		s.End(nil, nil)
		return
	}
	s.maybeFinish()
}

// maybeFinish destroys the socket once both directions are done.
func (s *Socket) maybeFinish() {
	if s.state == StateDestroyed {
		return
	}
	if s.writeFinished && s.readEnded {
		s.Destroy(nil)
	}
}

// SetEncoding switches data delivery to text in enc, or back to bytes for
// codec.Raw.
func (s *Socket) SetEncoding(enc codec.Encoding) {
	s.encoding = enc
	s.decoder = codec.NewDecoder(enc)
}

// Encoding returns the current delivery encoding.
func (s *Socket) Encoding() codec.Encoding { return s.encoding }

// SetTimeout arms an idle timer that emits timeout after d without reads
// or writes. The timer fires once per idle period and never destroys the
// socket. d == 0 disables it. onTimeout, when not nil, replaces the handler
// registered by the previous SetTimeout.
func (s *Socket) SetTimeout(d time.Duration, onTimeout func()) {
	s.timeoutSub.Cancel()
	s.timeoutSub = event.Subscription{}
	s.stopTimer()
	if d < 0 {
		d = 0
	}
	s.timeout = d
	if d == 0 || s.state == StateDestroyed {
		return
	}
	if onTimeout != nil {
		s.timeoutSub = s.timeoutEv.On(func(struct{}) { onTimeout() })
	}
	s.armTimer()
}

// Timeout returns the idle timeout, zero when disabled.
func (s *Socket) Timeout() time.Duration { return s.timeout }

func (s *Socket) armTimer() {
	gen := s.gen
	s.timer = s.loop.AfterFunc(s.timeout, func() {
		if gen != s.gen {
			return
		}
		s.timer = nil
		event.Fire(&s.timeoutEv)
	})
}

func (s *Socket) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// touch restarts the idle timer after activity.
func (s *Socket) touch() {
	if s.timeout <= 0 || s.state == StateDestroyed {
		return
	}
	s.stopTimer()
	s.armTimer()
}

// SetKeepAlive configures TCP keep-alive. Before connect the setting is
// remembered and applied once connected.
func (s *Socket) SetKeepAlive(enable bool, initialDelay time.Duration) {
	s.keepAlive = enable
	s.keepAliveDelay = initialDelay
	s.applyKeepAlive()
}

// SetNoDelay toggles Nagle's algorithm. Before connect the setting is
// remembered and applied once connected.
func (s *Socket) SetNoDelay(noDelay bool) {
	s.noDelay = noDelay
	s.applyNoDelay()
}

func (s *Socket) applyKeepAlive() {
	c, ok := s.conn.(interface {
		SetKeepAliveConfig(net.KeepAliveConfig) error
	})
	if !ok || s.state == StateDestroyed {
		return
	}
	cfg := net.KeepAliveConfig{Enable: s.keepAlive}
	if s.keepAlive && s.keepAliveDelay > 0 {
		cfg.Idle = s.keepAliveDelay
	}
	if err := c.SetKeepAliveConfig(cfg); err != nil {
		s.logger.Debug("keep-alive not applied", zap.Error(err))
	}
}

func (s *Socket) applyNoDelay() {
	c, ok := s.conn.(interface{ SetNoDelay(bool) error })
	if !ok || s.state == StateDestroyed {
		return
	}
	if err := c.SetNoDelay(s.noDelay); err != nil {
		s.logger.Debug("no-delay not applied", zap.Error(err))
	}
}

// KeepAlive reports the keep-alive setting.
func (s *Socket) KeepAlive() (bool, time.Duration) { return s.keepAlive, s.keepAliveDelay }

// NoDelay reports the no-delay setting.
func (s *Socket) NoDelay() bool { return s.noDelay }

func (s *Socket) State() State         { return s.state }
func (s *Socket) Connecting() bool     { return s.state == StateConnecting }
func (s *Socket) Destroyed() bool      { return s.state == StateDestroyed }
func (s *Socket) BytesRead() uint64    { return s.bytesRead }
func (s *Socket) BytesWritten() uint64 { return s.bytesWritten }
func (s *Socket) HighWaterMark() int   { return s.hwm }
func (s *Socket) AllowHalfOpen() bool  { return s.allowHalfOpen }

// Pending reports whether the socket has not finished connecting.
func (s *Socket) Pending() bool {
	return s.state == StateUnconnected || s.state == StateConnecting
}

// BufferSize returns the bytes accepted by Write but not yet handed to the
// transport.
func (s *Socket) BufferSize() int {
	return s.queuedBytes + s.inflight
}

// ReadyState reports which directions are usable.
func (s *Socket) ReadyState() ReadyState {
	switch s.state {
	case StateConnecting:
		return ReadyOpening
	case StateConnected, StateEnding:
		readable := !s.readEnded
		writable := !s.ending
		switch {
		case readable && writable:
			return ReadyOpen
		case readable:
			return ReadyReadOnly
		case writable:
			return ReadyWriteOnly
		}
	}
	return ReadyClosed
}

// Local returns the local address once connected.
func (s *Socket) Local() (address.SocketAddress, bool) {
	return s.local, s.local.IsValid()
}

// Remote returns the peer address once connected.
func (s *Socket) Remote() (address.SocketAddress, bool) {
	return s.remote, s.remote.IsValid()
}

// LocalAddress returns the local IP, or "" before connect.
func (s *Socket) LocalAddress() string {
	if !s.local.IsValid() {
		return ""
	}
	return s.local.Address()
}

// LocalPort returns the local port, or 0 before connect.
func (s *Socket) LocalPort() int { return int(s.local.Port()) }

// RemoteAddress returns the peer IP, or "" before connect.
func (s *Socket) RemoteAddress() string {
	if !s.remote.IsValid() {
		return ""
	}
	return s.remote.Address()
}

// RemotePort returns the peer port, or 0 before connect.
func (s *Socket) RemotePort() int { return int(s.remote.Port()) }

// RemoteFamily returns the peer's address family, or 0 before connect.
func (s *Socket) RemoteFamily() address.Family { return s.remote.Family() }

// Event registration. Every handler runs on the socket's loop.

func (s *Socket) OnConnect(fn func()) event.Subscription {
	return s.connectEv.On(func(struct{}) { fn() })
}

func (s *Socket) OnReady(fn func()) event.Subscription {
	return s.readyEv.On(func(struct{}) { fn() })
}

func (s *Socket) OnLookup(fn func(Lookup)) event.Subscription {
	return s.lookupEv.On(fn)
}

func (s *Socket) OnData(fn func(Data)) event.Subscription {
	return s.dataEv.On(fn)
}

func (s *Socket) OnDrain(fn func()) event.Subscription {
	return s.drainEv.On(func(struct{}) { fn() })
}

func (s *Socket) OnEnd(fn func()) event.Subscription {
	return s.endEv.On(func(struct{}) { fn() })
}

func (s *Socket) OnTimeout(fn func()) event.Subscription {
	return s.timeoutEv.On(func(struct{}) { fn() })
}

func (s *Socket) OnError(fn func(error)) event.Subscription {
	return s.errorEv.On(fn)
}

// OnClose registers fn for the final event. hadError is true when a
// transport error was reported or Destroy was given an error.
func (s *Socket) OnClose(fn func(hadError bool)) event.Subscription {
	return s.closeEv.On(fn)
}

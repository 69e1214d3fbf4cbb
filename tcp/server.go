package tcp

import (
	"context"
	"net"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/wippyai/tcpnet/address"
	tcperrors "github.com/wippyai/tcpnet/errors"
	"github.com/wippyai/tcpnet/event"
	"github.com/wippyai/tcpnet/loop"
	"github.com/wippyai/tcpnet/metrics"
	"github.com/wippyai/tcpnet/resource"
)

const maxAcceptDelay = time.Second

// Server accepts connections and hands each one to the connection event
// as a connected Socket on the server's loop.
//
// Like Socket, Server methods must be called from the server's loop.
type Server struct {
	loop    *loop.Loop
	opts    ServerOptions
	logger  *zap.Logger
	metrics metrics.Recorder

	// gen changes on Close; accept completions carrying an older value
	// are discarded.
	gen           uint64
	listener      net.Listener
	listening     bool
	listenPending bool
	addr          *address.SocketAddress
	closing       bool
	closeWaiters  []func(error)

	conns *resource.Table[*Socket]

	connectionEv event.Stream[*Socket]
	listeningEv  event.Signal
	errorEv      event.Stream[error]
	closeEv      event.Signal
	dropEv       event.Stream[DropInfo]
}

// NewServer creates a server that is not yet listening. onConnection, when
// not nil, is registered for the connection event.
func NewServer(opts ServerOptions, onConnection func(*Socket)) *Server {
	opts = opts.withDefaults()
	s := &Server{
		loop:    opts.Loop,
		opts:    opts,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		conns:   resource.NewTable[*Socket](),
	}
	s.conns.Subscribe(resource.ObserverFunc[*Socket](func(e resource.Event[*Socket]) {
		if e.Type == resource.EventDropped && e.Remaining == 0 {
			s.loop.Post(s.maybeFinishClose)
		}
	}))
	if onConnection != nil {
		s.connectionEv.On(onConnection)
	}
	return s
}

// Loop returns the loop the server and its sockets run on.
func (s *Server) Loop() *loop.Loop { return s.loop }

// Listen binds asynchronously. onListening, when not nil, runs once after
// the listening event. Failures are delivered only as error events.
func (s *Server) Listen(opts ListenOptions, onListening func()) {
	if s.listening || s.listenPending {
		s.postError(tcperrors.New(tcperrors.PhaseListen, tcperrors.KindTransport).
			Op("listen").
			Detail("server is already listening").
			Build())
		return
	}
	if opts.Port < 0 || opts.Port > 65535 {
		s.postError(tcperrors.InvalidPort(tcperrors.PhaseListen, opts.Port))
		return
	}
	if onListening != nil {
		s.listeningEv.Once(func(struct{}) { onListening() })
	}

	s.listenPending = true
	gen := s.gen
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	network := opts.network()

	go func() {
		ctx, span := tracer().Start(context.Background(), "tcp.listen",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("net.host.name", opts.Host),
				attribute.Int("net.host.port", opts.Port),
				attribute.Int("tcpnet.backlog", opts.Backlog),
			))

		ln, err := s.opts.Transport.Listen(ctx, network, addr, opts)
		if err != nil {
			mapped := mapNetError(tcperrors.PhaseListen, "listen", addr, err)
			endSpan(span, mapped)
			s.loop.Post(func() { s.listenDone(gen, nil, mapped) })
			return
		}
		if s.opts.DropPolicy == DropDefer && s.opts.MaxConnections > 0 {
			ln = netutil.LimitListener(ln, s.opts.MaxConnections)
		}
		endSpan(span, nil)
		s.loop.Post(func() { s.listenDone(gen, ln, nil) })
	}()
}

func (s *Server) listenDone(gen uint64, ln net.Listener, err error) {
	s.listenPending = false
	if gen != s.gen {
		if ln != nil {
			_ = ln.Close()
		}
		return
	}
	if err != nil {
		s.emitError(err)
		return
	}

	s.listener = ln
	s.listening = true
	if a, aerr := address.FromNetAddr(ln.Addr()); aerr == nil {
		s.addr = &a
	}
	s.logger.Info("listening",
		zap.Stringer("address", ln.Addr()),
		zap.Int("max_connections", s.opts.MaxConnections),
		zap.Stringer("drop_policy", s.opts.DropPolicy))

	event.Fire(&s.listeningEv)
	go s.acceptLoop(gen, ln)
}

// acceptLoop runs off the loop until the listener is closed. Failed
// accepts back off from 5ms doubling up to a second.
func (s *Server) acceptLoop(gen uint64, ln net.Listener) {
	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if isClosedConn(err) {
				return
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > maxAcceptDelay {
				tempDelay = maxAcceptDelay
			}
			mapped := mapNetError(tcperrors.PhaseAccept, "accept", ln.Addr().String(), err)
			s.loop.Post(func() {
				if gen == s.gen {
					s.emitError(mapped)
				}
			})
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0
		s.loop.Post(func() { s.handleAccept(gen, conn) })
	}
}

func (s *Server) handleAccept(gen uint64, conn net.Conn) {
	if gen != s.gen || !s.listening {
		_ = conn.Close()
		return
	}

	remote, _ := address.FromNetAddr(conn.RemoteAddr())
	local, _ := address.FromNetAddr(conn.LocalAddr())

	if bl := s.opts.BlockList; bl != nil && bl.CheckAddress(remote) {
		s.drop(conn, local, remote, DropBlocked)
		return
	}
	if limit := s.opts.MaxConnections; limit > 0 && s.opts.DropPolicy == DropDestroy && s.conns.Len() >= limit {
		s.drop(conn, local, remote, DropMaxConnections)
		return
	}

	sock := NewSocket(s.opts.socketOptions())
	sock.dir = metrics.Inbound
	sock.paused = s.opts.PauseOnConnect
	sock.keepAlive = s.opts.KeepAlive
	sock.keepAliveDelay = s.opts.KeepAliveInitialDelay
	if s.opts.NoDelay != nil {
		sock.noDelay = *s.opts.NoDelay
	}

	h := s.conns.Insert(sock)
	sock.onRelease = func() { s.conns.Remove(h) }
	sock.attach(conn)
	s.metrics.ConnectionOpened(metrics.Inbound)

	s.logger.Debug("accepted",
		zap.Stringer("remote", remote),
		zap.Int("connections", s.conns.Len()))

	s.connectionEv.Emit(sock)
}

func (s *Server) drop(conn net.Conn, local, remote address.SocketAddress, reason DropReason) {
	_ = conn.Close()
	s.metrics.ConnectionDropped(string(reason))
	s.logger.Debug("dropped connection",
		zap.Stringer("remote", remote),
		zap.String("reason", string(reason)))
	s.dropEv.Emit(DropInfo{Local: local, Remote: remote, Reason: reason})
}

// Close stops accepting at once. Accepted sockets are left alone;
// onClosed(nil) and the close event follow once every one of them has
// closed. Closing a server that is not listening calls
// onClosed(ErrServerNotRunning) and still emits close once.
func (s *Server) Close(onClosed func(error)) {
	if !s.listening {
		notRunning := func(error) {
			if onClosed != nil {
				onClosed(tcperrors.ServerNotRunning())
			}
		}
		if s.closing {
			s.closeWaiters = append(s.closeWaiters, notRunning)
			return
		}
		if s.listenPending {
			s.gen++
			s.listenPending = false
		}
		s.loop.Post(func() {
			notRunning(nil)
			event.Fire(&s.closeEv)
		})
		return
	}

	s.gen++
	s.listening = false
	s.addr = nil
	if err := s.listener.Close(); err != nil && !isClosedConn(err) {
		s.logger.Warn("listener close failed", zap.Error(err))
	}
	s.listener = nil
	s.closing = true
	if onClosed != nil {
		s.closeWaiters = append(s.closeWaiters, onClosed)
	}
	s.logger.Info("closing", zap.Int("connections", s.conns.Len()))

	s.loop.Post(s.maybeFinishClose)
}

func (s *Server) maybeFinishClose() {
	if !s.closing || s.conns.Len() > 0 {
		return
	}
	s.closing = false
	waiters := s.closeWaiters
	s.closeWaiters = nil
	for _, w := range waiters {
		w(nil)
	}
	s.logger.Info("closed")
	event.Fire(&s.closeEv)
}

func (s *Server) emitError(err error) {
	s.logger.Warn("server error", zap.Error(err))
	s.errorEv.Emit(err)
}

func (s *Server) postError(err error) {
	s.loop.Post(func() { s.emitError(err) })
}

// GetConnections reports the number of live accepted sockets
// asynchronously.
func (s *Server) GetConnections(cb func(err error, count int)) {
	s.loop.Post(func() { cb(nil, s.conns.Len()) })
}

// Connections is the synchronous form of GetConnections, safe from any
// goroutine.
func (s *Server) Connections() int { return s.conns.Len() }

// EachConnection calls fn for every live accepted socket until fn returns
// false.
func (s *Server) EachConnection(fn func(*Socket) bool) {
	s.conns.Each(func(_ resource.Handle, sock *Socket) bool { return fn(sock) })
}

// DestroyConnections destroys every accepted socket. Their close events
// are delivered before a pending Close completes.
func (s *Server) DestroyConnections() {
	s.conns.Clear()
}

// Address returns the bound address while listening, nil otherwise.
func (s *Server) Address() *address.SocketAddress {
	if s.addr == nil {
		return nil
	}
	a := *s.addr
	return &a
}

func (s *Server) Listening() bool     { return s.listening }
func (s *Server) MaxConnections() int { return s.opts.MaxConnections }

func (s *Server) OnConnection(fn func(*Socket)) event.Subscription {
	return s.connectionEv.On(fn)
}

func (s *Server) OnListening(fn func()) event.Subscription {
	return s.listeningEv.On(func(struct{}) { fn() })
}

func (s *Server) OnError(fn func(error)) event.Subscription {
	return s.errorEv.On(fn)
}

func (s *Server) OnClose(fn func()) event.Subscription {
	return s.closeEv.On(func(struct{}) { fn() })
}

// OnDrop registers fn for connections closed right after accept because of
// the block list or MaxConnections.
func (s *Server) OnDrop(fn func(DropInfo)) event.Subscription {
	return s.dropEv.On(fn)
}

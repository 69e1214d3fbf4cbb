package tcp

import (
	"net"

	"go.uber.org/zap"

	"github.com/wippyai/tcpnet/codec"
	tcperrors "github.com/wippyai/tcpnet/errors"
	"github.com/wippyai/tcpnet/event"
)

type writeReq struct {
	data []byte
	cb   func()
}

// Write queues p for sending and reports whether the send buffer is still
// below the high-water mark. When it returns false a drain event follows
// once the buffer empties below the mark. onFlushed runs after p has been
// handed to the transport. Writing to a socket that is not connected, or
// after End, fails with a not_connected error and queues nothing.
func (s *Socket) Write(p []byte, onFlushed func()) (bool, error) {
	if s.state != StateConnected || s.ending {
		return false, tcperrors.NotConnected("write")
	}
	if s.writeErr != nil {
		return false, s.writeErr
	}
	s.enqueue(p, onFlushed)
	s.flush()

	ok := s.BufferSize() < s.hwm
	if !ok {
		s.needDrain = true
	}
	return ok, nil
}

// WriteString encodes str with enc and writes it.
func (s *Socket) WriteString(str string, enc codec.Encoding, onFlushed func()) (bool, error) {
	p, err := codec.Encode(str, enc)
	if err != nil {
		return false, err
	}
	return s.Write(p, onFlushed)
}

func (s *Socket) enqueue(p []byte, cb func()) {
	data := make([]byte, len(p))
	copy(data, p)
	s.queue = append(s.queue, writeReq{data: data, cb: cb})
	s.queuedBytes += len(data)
}

// flush hands everything queued to the transport as one vectored write.
// Only one batch is in flight at a time.
func (s *Socket) flush() {
	if s.writing || len(s.queue) == 0 || s.conn == nil {
		return
	}
	batch := s.queue
	s.queue = nil
	s.inflight = s.queuedBytes
	s.queuedBytes = 0
	s.writing = true

	bufs := make(net.Buffers, 0, len(batch))
	for _, w := range batch {
		if len(w.data) > 0 {
			bufs = append(bufs, w.data)
		}
	}

	gen := s.gen
	conn := s.conn
	go func() {
		n, err := bufs.WriteTo(conn)
		s.loop.Post(func() { s.writeDone(gen, batch, int(n), err) })
	}()
}

func (s *Socket) writeDone(gen uint64, batch []writeReq, n int, err error) {
	if gen != s.gen {
		return
	}
	s.writing = false
	s.inflight = 0
	if n > 0 {
		s.bytesWritten += uint64(n)
		s.metrics.BytesWritten(n)
		s.touch()
	}

	if err != nil {
		s.queue = nil
		s.queuedBytes = 0
		s.endCallbacks = nil
		s.writeErr = mapNetError(tcperrors.PhaseWrite, "write", s.remote.String(), err)
		if !isClosedConn(err) {
			s.emitError(s.writeErr)
		}
		return
	}

	for _, w := range batch {
		if w.cb != nil {
			w.cb()
			if gen != s.gen {
				return
			}
		}
	}

	s.flush()
	if s.needDrain && s.BufferSize() < s.hwm {
		s.needDrain = false
		event.Fire(&s.drainEv)
		if gen != s.gen {
			return
		}
	}
	if s.ending && !s.writing && len(s.queue) == 0 {
		s.finishWrite()
	}
}

// End flushes final (when not empty) and everything queued, then shuts
// down the write side. onFinished runs after the shutdown. The socket
// destroys itself once the peer has ended too. End on a connecting socket
// keeps final and takes effect after connect; on an unconnected or
// destroyed socket it does nothing.
func (s *Socket) End(final []byte, onFinished func()) {
	switch s.state {
	case StateConnecting:
		if len(final) > 0 {
			s.endPendData = append(s.endPendData, final...)
		}
		s.endPending = true
		if onFinished != nil {
			s.endPendCbs = append(s.endPendCbs, onFinished)
		}
		return
	case StateConnected:
	case StateEnding:
		if onFinished != nil {
			gen := s.gen
			s.loop.Post(func() {
				if gen == s.gen {
					onFinished()
				}
			})
		}
		return
	default:
		return
	}

	if s.ending {
		if onFinished != nil {
			s.endCallbacks = append(s.endCallbacks, onFinished)
		}
		return
	}

	if len(final) > 0 && s.writeErr == nil {
		s.enqueue(final, nil)
	}
	s.ending = true
	if onFinished != nil {
		s.endCallbacks = append(s.endCallbacks, onFinished)
	}
	s.flush()

	if !s.writing && len(s.queue) == 0 {
		gen := s.gen
		s.loop.Post(func() {
			if gen == s.gen && !s.writing && len(s.queue) == 0 {
				s.finishWrite()
			}
		})
	}
}

// EndString encodes str with enc and passes it to End.
func (s *Socket) EndString(str string, enc codec.Encoding, onFinished func()) error {
	p, err := codec.Encode(str, enc)
	if err != nil {
		return err
	}
	s.End(p, onFinished)
	return nil
}

func (s *Socket) finishWrite() {
	if s.writeFinished || s.state == StateDestroyed {
		return
	}
	s.writeFinished = true
	gen := s.gen

	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		if err := cw.CloseWrite(); err != nil && !isClosedConn(err) {
			s.emitError(mapNetError(tcperrors.PhaseClose, "shutdown", s.remote.String(), err))
			if gen != s.gen {
				return
			}
		}
	}
	s.state = StateEnding
	s.logger.Debug("write side finished", zap.Stringer("remote", s.remote))

	cbs := s.endCallbacks
	s.endCallbacks = nil
	for _, cb := range cbs {
		cb()
		if gen != s.gen {
			return
		}
	}
	s.maybeFinish()
}

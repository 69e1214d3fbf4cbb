package tcp

import (
	"net"
	"sync"

	"github.com/smallnest/ringbuffer"
)

// receiver owns the reading goroutine of a connected socket. Received bytes
// land in a bounded ring buffer; when it is full the goroutine stops
// reading until the loop drains it, which lets TCP flow control push back
// on the peer.
type receiver struct {
	conn   net.Conn
	buf    *ringbuffer.RingBuffer
	size   int
	notify func()

	mu       sync.Mutex
	space    *sync.Cond
	err      error
	done     bool
	closed   bool
	notified bool
}

func newReceiver(conn net.Conn, size int, notify func()) *receiver {
	r := &receiver{
		conn:   conn,
		buf:    ringbuffer.New(size),
		size:   size,
		notify: notify,
	}
	r.space = sync.NewCond(&r.mu)
	return r
}

func (r *receiver) run() {
	chunk := make([]byte, min(readChunkSize, r.size))
	for {
		r.mu.Lock()
		for r.buf.Free() == 0 && !r.closed {
			r.space.Wait()
		}
		if r.closed {
			r.mu.Unlock()
			return
		}
		n := min(len(chunk), r.buf.Free())
		r.mu.Unlock()

		m, err := r.conn.Read(chunk[:n])

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		if m > 0 {
			// only this goroutine writes, so the space checked above is
			// still there
			_, _ = r.buf.Write(chunk[:m])
		}
		if err != nil {
			r.err = err
			r.done = true
		}
		fire := !r.notified && (m > 0 || err != nil)
		if fire {
			r.notified = true
		}
		r.mu.Unlock()

		if fire {
			r.notify()
		}
		if err != nil {
			return
		}
	}
}

// rearm allows the next read to post a notification. Called by the loop
// before it drains.
func (r *receiver) rearm() {
	r.mu.Lock()
	r.notified = false
	r.mu.Unlock()
}

// take removes up to limit buffered bytes. Once the buffer is empty and the
// reader has stopped it returns the terminal error (io.EOF for an orderly
// shutdown).
func (r *receiver) take(limit int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := r.buf.Length(); n > 0 {
		p := make([]byte, min(n, limit))
		m, _ := r.buf.Read(p)
		r.space.Signal()
		return p[:m], nil
	}
	if r.done {
		return nil, r.err
	}
	return nil, nil
}

func (r *receiver) close() {
	r.mu.Lock()
	r.closed = true
	r.buf.Reset()
	r.space.Broadcast()
	r.mu.Unlock()
}

// Package loop provides the serial executor sockets and servers run on.
//
// A Loop runs posted callbacks one at a time, in the order they were
// posted. The goroutine that drains the queue exists only while work is
// pending, so an idle Loop costs nothing and needs no Close.
package loop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Loop is a FIFO serial executor. The zero value is ready to use.
type Loop struct {
	mu      sync.Mutex
	idle    *sync.Cond
	queue   []func()
	running bool
	busy    int
}

// New returns an empty loop.
func New() *Loop {
	return &Loop{}
}

// Post schedules fn to run on the loop. It never blocks and never runs fn
// inline.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.busy++
	l.queue = append(l.queue, fn)
	start := !l.running
	l.running = true
	l.mu.Unlock()

	if start {
		go l.run()
	}
}

func (l *Loop) run() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			l.queue = nil
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.exec(fn)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		l.mu.Lock()
		l.busy--
		if l.busy == 0 && l.idle != nil {
			l.idle.Broadcast()
		}
		l.mu.Unlock()
	}()
	fn()
}

// Do runs fn on the loop and waits for it to return. Calling Do from a
// callback running on the same loop deadlocks.
func (l *Loop) Do(fn func()) {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

// Wait blocks until the queue is empty and no callback is running.
// Callbacks posted while waiting extend the wait.
func (l *Loop) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idle == nil {
		l.idle = sync.NewCond(&l.mu)
	}
	for l.busy > 0 {
		l.idle.Wait()
	}
}

// Timer is a pending AfterFunc callback.
type Timer struct {
	t       *time.Timer
	stopped atomic.Bool
}

// AfterFunc posts fn to the loop once d has elapsed.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		if tm.stopped.Load() {
			return
		}
		l.Post(func() {
			if tm.stopped.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return tm
}

// Stop cancels the timer. It reports whether the callback was prevented
// from running; a callback already queued on the loop is also prevented.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	t.t.Stop()
	return t.stopped.CompareAndSwap(false, true)
}

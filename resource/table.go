package resource

import "sync"

// Table is an in-memory handle table with a free list and lifecycle
// observers. It is safe for concurrent use.
type Table[T any] struct {
	entries   []entry[T]
	freeList  []Handle
	observers []Observer[T]
	live      int
	mu        sync.RWMutex
}

type entry[T any] struct {
	value T
	valid bool
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries:  make([]entry[T], 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

// Insert stores value and returns its handle.
func (t *Table[T]) Insert(value T) Handle {
	t.mu.Lock()
	var handle Handle
	e := entry[T]{value: value, valid: true}
	if n := len(t.freeList); n > 0 {
		handle = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
		t.entries[handle-1] = e
	} else {
		t.entries = append(t.entries, e)
		handle = Handle(len(t.entries))
	}
	t.live++
	ev := Event[T]{Type: EventCreated, Handle: handle, Value: value, Remaining: t.live}
	obs := t.snapshotLocked()
	t.mu.Unlock()

	notify(obs, ev)
	return handle
}

// Remove drops an entry and returns (value, true) if it was present.
func (t *Table[T]) Remove(handle Handle) (T, bool) {
	var zero T
	if handle == 0 {
		return zero, false
	}

	t.mu.Lock()
	idx := int(handle) - 1
	if idx >= len(t.entries) || !t.entries[idx].valid {
		t.mu.Unlock()
		return zero, false
	}
	value := t.entries[idx].value
	t.entries[idx] = entry[T]{}
	t.freeList = append(t.freeList, handle)
	t.live--
	ev := Event[T]{Type: EventDropped, Handle: handle, Value: value, Remaining: t.live}
	obs := t.snapshotLocked()
	t.mu.Unlock()

	if d, ok := any(value).(Dropper); ok {
		d.Drop()
	}
	notify(obs, ev)
	return value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table[T]) Subscribe(o Observer[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Each calls fn for every live entry until fn returns false. fn runs
// without the table lock held, on a snapshot.
func (t *Table[T]) Each(fn func(Handle, T) bool) {
	type kv struct {
		h Handle
		v T
	}
	t.mu.RLock()
	snap := make([]kv, 0, t.live)
	for i, e := range t.entries {
		if e.valid {
			snap = append(snap, kv{Handle(i + 1), e.value})
		}
	}
	t.mu.RUnlock()

	for _, e := range snap {
		if !fn(e.h, e.v) {
			return
		}
	}
}

// Clear removes every entry, dropping each value that implements Dropper.
func (t *Table[T]) Clear() {
	var handles []Handle
	t.Each(func(h Handle, _ T) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		t.Remove(h)
	}
}

func (t *Table[T]) snapshotLocked() []Observer[T] {
	if len(t.observers) == 0 {
		return nil
	}
	out := make([]Observer[T], len(t.observers))
	copy(out, t.observers)
	return out
}

func notify[T any](obs []Observer[T], e Event[T]) {
	for _, o := range obs {
		o.OnResourceEvent(e)
	}
}

package capture

import "sync"

// Sink receives every appended request. Journals implement it.
type Sink interface {
	Record(Request)
}

// Buffer is the FIFO of requests captured during one test session.
// CDP events are delivered on chromedp listener goroutines, so access is
// guarded by a mutex even though appends arrive in dispatch order.
type Buffer struct {
	mu    sync.Mutex
	items []Request
	sinks []Sink

	// history keeps every appended request; Drain and Clear leave it alone.
	history []Request
}

func NewBuffer(sinks ...Sink) *Buffer {
	return &Buffer{sinks: sinks}
}

// Append adds r at the tail.
func (b *Buffer) Append(r Request) {
	b.mu.Lock()
	b.items = append(b.items, r)
	b.history = append(b.history, r)
	sinks := b.sinks
	b.mu.Unlock()

	for _, s := range sinks {
		s.Record(r)
	}
}

// Drain removes and returns the oldest request. ok is false when empty.
func (b *Buffer) Drain() (Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) == 0 {
		return Request{}, false
	}
	r := b.items[0]
	b.items[0] = Request{}
	b.items = b.items[1:]
	return r, true
}

// DrainAll removes and returns every buffered request in arrival order.
func (b *Buffer) DrainAll() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	if out == nil {
		return []Request{}
	}
	return out
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.items = nil
	b.mu.Unlock()
}

// PeekAll returns a copy of the buffered requests without consuming them.
func (b *Buffer) PeekAll() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.items))
	copy(out, b.items)
	return out
}

// History returns a copy of every request appended since the buffer was
// created, including those already drained or cleared.
func (b *Buffer) History() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.history))
	copy(out, b.history)
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

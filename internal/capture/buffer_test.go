package capture

import (
	"sync"
	"testing"
)

func strPtr(s string) *string { return &s }

type recordingSink struct {
	mu   sync.Mutex
	seen []Request
}

func (s *recordingSink) Record(r Request) {
	s.mu.Lock()
	s.seen = append(s.seen, r)
	s.mu.Unlock()
}

func TestBufferFIFO(t *testing.T) {
	b := NewBuffer()
	b.Append(Request{URL: "https://x/api/a", Method: "POST"})
	b.Append(Request{URL: "https://x/api/b", Method: "POST"})
	b.Append(Request{URL: "https://x/api/c", Method: "GET"})

	if b.Len() != 3 {
		t.Fatalf("expected 3 buffered requests, got %d", b.Len())
	}
	for _, want := range []string{"https://x/api/a", "https://x/api/b", "https://x/api/c"} {
		got, ok := b.Drain()
		if !ok {
			t.Fatalf("expected %s, buffer was empty", want)
		}
		if got.URL != want {
			t.Fatalf("expected %s, got %s", want, got.URL)
		}
	}
	if _, ok := b.Drain(); ok {
		t.Fatal("expected empty buffer after draining everything")
	}
}

func TestBufferDrainEmpty(t *testing.T) {
	b := NewBuffer()
	got, ok := b.Drain()
	if ok {
		t.Fatalf("expected ok=false on empty buffer, got %+v", got)
	}
	all := b.DrainAll()
	if all == nil || len(all) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", all)
	}
}

func TestBufferClearAndPeek(t *testing.T) {
	b := NewBuffer()
	b.Append(Request{URL: "u1", Method: "POST", PostData: strPtr(`{"email":"a@b.co"}`)})
	b.Append(Request{URL: "u2", Method: "POST"})

	peek := b.PeekAll()
	if len(peek) != 2 || peek[0].URL != "u1" || peek[1].URL != "u2" {
		t.Fatalf("unexpected peek %+v", peek)
	}
	peek[0].URL = "mutated"
	if again := b.PeekAll(); again[0].URL != "u1" {
		t.Fatalf("PeekAll must return a copy, buffer saw %q", again[0].URL)
	}
	if b.Len() != 2 {
		t.Fatalf("PeekAll must not consume, len=%d", b.Len())
	}

	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("expected empty buffer after Clear, len=%d", b.Len())
	}
	b.Append(Request{URL: "u3"})
	all := b.DrainAll()
	if len(all) != 1 || all[0].URL != "u3" {
		t.Fatalf("expected only u3 after clear, got %+v", all)
	}
}

func TestBufferHistorySurvivesDrainAndClear(t *testing.T) {
	b := NewBuffer()
	b.Append(Request{URL: "u1"})
	b.Append(Request{URL: "u2"})
	b.DrainAll()
	b.Append(Request{URL: "u3"})
	b.Clear()

	hist := b.History()
	if len(hist) != 3 || hist[0].URL != "u1" || hist[2].URL != "u3" {
		t.Fatalf("History() = %+v", hist)
	}
	hist[0].URL = "mutated"
	if again := b.History(); again[0].URL != "u1" {
		t.Fatalf("History must return a copy, buffer saw %q", again[0].URL)
	}
	if b.Len() != 0 {
		t.Fatalf("History must not refill the queue, len=%d", b.Len())
	}
}

func TestBufferNotifiesSinks(t *testing.T) {
	sink := &recordingSink{}
	b := NewBuffer(sink)
	b.Append(Request{URL: "u1"})
	b.Append(Request{URL: "u2"})
	b.Drain()

	if len(sink.seen) != 2 {
		t.Fatalf("expected 2 sink records, got %d", len(sink.seen))
	}
	if sink.seen[0].URL != "u1" || sink.seen[1].URL != "u2" {
		t.Fatalf("sink order mismatch: %+v", sink.seen)
	}
}

func TestBufferConcurrentAppend(t *testing.T) {
	b := NewBuffer()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Append(Request{URL: "u", Method: "POST"})
		}()
	}
	wg.Wait()
	if got := len(b.DrainAll()); got != 50 {
		t.Fatalf("expected 50 requests, got %d", got)
	}
}

// Package relay fans live run events out to HTTP subscribers as
// server-sent events.
package relay

import (
	"encoding/json"
	"sync"
	"sync/atomic"
)

const subscriberBufSize = 256

// Feeds published during a run.
const (
	FeedCapture = "capture"
	FeedResult  = "result"
)

// Event is one server-sent event.
type Event struct {
	ID      int64
	Feed    string
	Payload string
}

type subscriber struct {
	ch    chan Event
	feeds map[string]bool // nil accepts all
}

// Broker fans out events to all subscribers.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[int64]*subscriber
	nextSub     atomic.Int64
	nextEvent   atomic.Int64
	dropped     atomic.Int64
}

func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int64]*subscriber)}
}

// Subscribe registers a client for the given feeds, all feeds when none are
// named. The channel is buffered; a slow client loses events.
func (b *Broker) Subscribe(feeds ...string) (int64, <-chan Event) {
	sub := &subscriber{ch: make(chan Event, subscriberBufSize)}
	if len(feeds) > 0 {
		sub.feeds = make(map[string]bool, len(feeds))
		for _, f := range feeds {
			sub.feeds[f] = true
		}
	}
	id := b.nextSub.Add(1)
	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(id int64) {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
	b.mu.Unlock()
}

// Publish sends payload on feed to every interested subscriber without
// blocking.
func (b *Broker) Publish(feed, payload string) {
	evt := Event{ID: b.nextEvent.Add(1), Feed: feed, Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.feeds != nil && !sub.feeds[feed] {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			b.dropped.Add(1)
		}
	}
}

// PublishJSON marshals v and publishes it on feed.
func (b *Broker) PublishJSON(feed string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.Publish(feed, string(data))
	return nil
}

func (b *Broker) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped counts events a full subscriber buffer refused.
func (b *Broker) Dropped() int64 { return b.dropped.Load() }

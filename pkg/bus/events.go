package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type EventType string

const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventReceived     EventType = "received"
	EventDropped      EventType = "dropped"
	EventSent         EventType = "sent"
	EventSendFailed   EventType = "send_failed"
)

// Event describes one adapter lifecycle or traffic step.
type Event struct {
	Type      EventType `json:"type"`
	At        time.Time `json:"at"`
	ServiceID string    `json:"service_id,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Subscription receives events on C until Close is called, its context ends or
// the bus closes. C is closed in all three cases.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	lost    atomic.Uint64
	release func()
}

// Lost reports how many events were skipped because C was full.
func (s *Subscription) Lost() uint64 {
	return s.lost.Load()
}

func (s *Subscription) Close() {
	s.release()
}

// eventHub fans events out without ever blocking the publisher.
type eventHub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

func (h *eventHub) add(sub *Subscription) (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, false
	}
	if h.subs == nil {
		h.subs = make(map[uint64]*Subscription)
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	return id, true
}

func (h *eventHub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *eventHub) broadcast(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}

	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- event:
			delivered++
		default:
			sub.lost.Add(1)
		}
	}
	return delivered
}

// PublishEvent stamps event and offers it to every subscriber, returning how
// many accepted it.
func (mb *MessageBus) PublishEvent(event Event) int {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	return mb.events.broadcast(event)
}

// Subscribe registers a subscriber with room for buffer pending events. A
// non-positive buffer selects the default.
func (mb *MessageBus) Subscribe(ctx context.Context, buffer int) *Subscription {
	if ctx == nil {
		ctx = context.Background()
	}
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	ch := make(chan Event, buffer)
	sub := &Subscription{C: ch, ch: ch}

	id, ok := mb.events.add(sub)
	if !ok {
		close(ch)
		sub.release = func() {}
		return sub
	}

	var once sync.Once
	stop := make(chan struct{})
	sub.release = func() {
		once.Do(func() {
			close(stop)
			mb.events.remove(id)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.release()
		case <-mb.done:
		case <-stop:
		}
	}()

	return sub
}

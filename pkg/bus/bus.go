package bus

import (
	"context"
	"sync"

	"smsbridge/pkg/activity"
)

const defaultBufferSize = 100

// MessageBus carries raw webhook records from the listener to the adapter
// through a bounded queue and fans adapter events out to subscribers.
type MessageBus struct {
	records chan activity.RawRecord
	events  eventHub

	done      chan struct{}
	closeOnce sync.Once
}

// NewMessageBus creates a bus whose record queue holds size entries. A
// non-positive size selects the default.
func NewMessageBus(size int) *MessageBus {
	if size <= 0 {
		size = defaultBufferSize
	}

	return &MessageBus{
		records: make(chan activity.RawRecord, size),
		done:    make(chan struct{}),
	}
}

// PublishRecord enqueues rec, blocking while the queue is full. It returns
// false when ctx ends or the bus is closed first.
func (mb *MessageBus) PublishRecord(ctx context.Context, rec activity.RawRecord) bool {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	default:
	}

	select {
	case <-ctx.Done():
		return false
	case <-mb.done:
		return false
	case mb.records <- rec:
		return true
	}
}

// ConsumeRecord dequeues the oldest record.
func (mb *MessageBus) ConsumeRecord(ctx context.Context) (activity.RawRecord, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-ctx.Done():
		return activity.RawRecord{}, false
	case <-mb.done:
		return activity.RawRecord{}, false
	case rec := <-mb.records:
		return rec, true
	}
}

// Pending reports how many records are queued.
func (mb *MessageBus) Pending() int {
	return len(mb.records)
}

// Close stops record traffic and closes every event subscription.
func (mb *MessageBus) Close() {
	mb.closeOnce.Do(func() {
		close(mb.done)
		mb.events.closeAll()
	})
}

package events

import (
	"sync"
	"sync/atomic"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

// subscription receives events whose type is in types, or every event when
// types is nil.
type subscription struct {
	ch    chan *models.Event
	types map[models.EventType]bool
}

func (s *subscription) wants(t models.EventType) bool {
	return s.types == nil || s.types[t]
}

// EventBus fans model lifecycle events out to buffered subscribers. Publish
// never blocks; a full subscriber loses the event.
type EventBus struct {
	mu         sync.RWMutex
	subs       []*subscription
	bufferSize int
	closed     bool
	dropped    atomic.Uint64
}

func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &EventBus{bufferSize: bufferSize}
}

// Subscribe returns a channel carrying only the given event types. With no
// types it carries everything.
func (b *EventBus) Subscribe(types ...models.EventType) <-chan *models.Event {
	sub := &subscription{ch: make(chan *models.Event, b.bufferSize)}
	if len(types) > 0 {
		sub.types = make(map[models.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.ch)
		return sub.ch
	}
	b.subs = append(b.subs, sub)
	return sub.ch
}

func (b *EventBus) SubscribeAll() <-chan *models.Event {
	return b.Subscribe()
}

func (b *EventBus) Publish(event *models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			logger.Warnf("Event channel full, dropping event: %s", event.Type)
		}
	}
}

// Dropped counts events lost to full subscriber buffers.
func (b *EventBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription. Later subscribers get a closed channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

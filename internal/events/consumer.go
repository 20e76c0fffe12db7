package events

import (
	"context"
	"time"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

// HandlerFunc processes one event. ctx is cancelled when the consumer is
// stopped before its subscription drains.
type HandlerFunc func(ctx context.Context, event *models.Event)

// Consumer drains one bus subscription on its own goroutine.
type Consumer struct {
	name   string
	events <-chan *models.Event
	handle HandlerFunc
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer(name string, events <-chan *models.Event, handle HandlerFunc) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		name:   name,
		events: events,
		handle: handle,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (c *Consumer) Start() {
	go c.run()
}

// Stop gives the subscription up to grace to drain, which only happens once
// the bus is closed, then cancels the handler context and waits for the
// goroutine. It reports whether the subscription had drained. A zero grace
// detaches immediately.
func (c *Consumer) Stop(grace time.Duration) bool {
	drained := true
	if grace > 0 {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-c.done:
		case <-timer.C:
			drained = false
		}
	} else {
		select {
		case <-c.done:
		default:
			drained = false
		}
	}

	c.cancel()
	<-c.done
	if !drained && grace > 0 {
		logger.WithField("consumer", c.name).Warn("Stopped before subscription drained")
	}
	return drained
}

func (c *Consumer) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case event, ok := <-c.events:
			if !ok {
				return
			}
			c.handle(c.ctx, event)
		}
	}
}

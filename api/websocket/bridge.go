package websocket

import (
	"context"

	"github.com/OldStager01/press-downtime/internal/events"
	"github.com/OldStager01/press-downtime/pkg/models"
)

// EventBridge streams bus events to websocket clients.
type EventBridge struct {
	*events.Consumer
	hub *Hub
}

func NewEventBridge(hub *Hub, subscription <-chan *models.Event) *EventBridge {
	b := &EventBridge{hub: hub}
	b.Consumer = events.NewConsumer("websocket-bridge", subscription, b.forward)
	return b
}

// Stop detaches from the bus immediately; clients are going away anyway.
func (b *EventBridge) Stop() {
	b.Consumer.Stop(0)
}

func (b *EventBridge) forward(_ context.Context, event *models.Event) {
	if msg := fromEvent(event); msg != nil {
		b.hub.Send(msg)
	}
}

package websocket

import (
	"encoding/json"
	"time"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

type MessageType string

const (
	MessageTypeTraining        MessageType = "training"
	MessageTypeModel           MessageType = "model"
	MessageTypePredictions     MessageType = "predictions"
	MessageTypeRecommendations MessageType = "recommendations"
	MessageTypeAlert           MessageType = "alert"
	MessageTypeError           MessageType = "error"
	MessageTypeSubscription    MessageType = "subscription_update"
	MessageTypePong            MessageType = "pong"
)

// streamed lists the channels a client may subscribe to.
var streamed = []MessageType{
	MessageTypeTraining,
	MessageTypeModel,
	MessageTypePredictions,
	MessageTypeRecommendations,
	MessageTypeAlert,
	MessageTypeError,
}

// IncomingMessage is a client control frame. Type is subscribe,
// unsubscribe or ping.
type IncomingMessage struct {
	Type      string        `json:"type"`
	MachineID *int64        `json:"machine_id,omitempty"`
	Channels  []MessageType `json:"channels,omitempty"`
}

// OutgoingMessage is the frame sent to websocket clients.
type OutgoingMessage struct {
	Type      MessageType `json:"type"`
	Event     string      `json:"event,omitempty"`
	MachineID *int64      `json:"machine_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	TraceID   string      `json:"trace_id,omitempty"`
}

func (m *OutgoingMessage) JSON() []byte {
	data, err := json.Marshal(m)
	if err != nil {
		logger.Errorf("Failed to marshal WebSocket message: %v", err)
		return nil
	}
	return data
}

func newSubscriptionUpdate(action string, f filter) *OutgoingMessage {
	return &OutgoingMessage{
		Type:      MessageTypeSubscription,
		Event:     action,
		MachineID: f.machineID,
		Timestamp: time.Now().UTC(),
		Data:      map[string]interface{}{"channels": f.channelList()},
	}
}

// messageTypeFor groups internal event types into client-facing channels.
// An empty result means the event is not streamed.
func messageTypeFor(eventType models.EventType) MessageType {
	switch eventType {
	case models.EventTypeTrainingStarted, models.EventTypeTrainingCompleted, models.EventTypeTrainingFailed:
		return MessageTypeTraining
	case models.EventTypeModelSwapped:
		return MessageTypeModel
	case models.EventTypePredictionsGenerated:
		return MessageTypePredictions
	case models.EventTypeRecommendationsGenerated:
		return MessageTypeRecommendations
	case models.EventTypeAlert:
		return MessageTypeAlert
	case models.EventTypeError:
		return MessageTypeError
	default:
		return ""
	}
}

func fromEvent(event *models.Event) *OutgoingMessage {
	msgType := messageTypeFor(event.Type)
	if msgType == "" {
		return nil
	}
	return &OutgoingMessage{
		Type:      msgType,
		Event:     string(event.Type),
		MachineID: event.MachineID,
		Timestamp: event.Timestamp,
		Severity:  string(event.Severity),
		Message:   event.Message,
		Data:      event.Data,
		TraceID:   event.TraceID,
	}
}

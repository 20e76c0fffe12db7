package models

import "time"

type EventType string

const (
	EventTypeTrainingStarted          EventType = "training_started"
	EventTypeTrainingCompleted        EventType = "training_completed"
	EventTypeTrainingFailed           EventType = "training_failed"
	EventTypeModelSwapped             EventType = "model_swapped"
	EventTypePredictionsGenerated     EventType = "predictions_generated"
	EventTypeRecommendationsGenerated EventType = "recommendations_generated"
	EventTypeAlert                    EventType = "alert"
	EventTypeError                    EventType = "error"
)

// IsTraining reports whether t belongs to the training run lifecycle.
func (t EventType) IsTraining() bool {
	switch t {
	case EventTypeTrainingStarted, EventTypeTrainingCompleted, EventTypeTrainingFailed:
		return true
	}
	return false
}

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event is a model lifecycle or analysis notification. Data holds one of
// the payload types below.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Severity  EventSeverity `json:"severity"`
	MachineID *int64        `json:"machine_id,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Message   string        `json:"message"`
	Data      interface{}   `json:"data,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
}

// TrainingEvent is the payload of training lifecycle events. Result is set
// once a run has finished, successfully or not.
type TrainingEvent struct {
	Trigger string          `json:"trigger"`
	Result  *TrainingResult `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type ModelSwapEvent struct {
	Version   int64     `json:"version"`
	TrainedAt time.Time `json:"trained_at"`
}

type PredictionSummary struct {
	Predictions     int   `json:"predictions"`
	HighRiskCount   int   `json:"high_risk_count"`
	MediumRiskCount int   `json:"medium_risk_count"`
	ModelVersion    int64 `json:"model_version"`
}

type RecommendationSummary struct {
	Recommendations int    `json:"recommendations"`
	TotalUrgent     int    `json:"total_urgent"`
	TotalNormal     int    `json:"total_normal"`
	Status          string `json:"status"`
}

// RiskAlert reports a machine's riskiest recent day.
type RiskAlert struct {
	MachineName  string    `json:"machine_name"`
	Date         string    `json:"date"`
	DowntimeRisk float64   `json:"downtime_risk"`
	RiskLevel    RiskLevel `json:"risk_level"`
	HighRiskDays int       `json:"high_risk_days"`
}

func NewEvent(eventType EventType, message string) *Event {
	return &Event{
		ID:        NewUUID(),
		Type:      eventType,
		Severity:  SeverityInfo,
		Timestamp: time.Now().UTC(),
		Message:   message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}

func (e *Event) WithMachine(machineID int64) *Event {
	e.MachineID = &machineID
	return e
}

func (e *Event) WithTraceID(traceID string) *Event {
	e.TraceID = traceID
	return e
}

// Training returns the training payload, or nil for other events.
func (e *Event) Training() *TrainingEvent {
	data, _ := e.Data.(*TrainingEvent)
	return data
}

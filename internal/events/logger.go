package events

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

const journalDrainTimeout = 5 * time.Second

// RunRecorder persists the outcome of a training run.
type RunRecorder interface {
	RecordRun(ctx context.Context, trigger string, result *models.TrainingResult) error
}

// EventLogger writes every event to the log and records finished training
// runs through recorder, which may be nil.
type EventLogger struct {
	*Consumer
	recorder RunRecorder
}

func NewEventLogger(recorder RunRecorder, events <-chan *models.Event) *EventLogger {
	l := &EventLogger{recorder: recorder}
	l.Consumer = NewConsumer("event-logger", events, l.handle)
	return l
}

// Stop waits for pending run records after the bus has been closed.
func (l *EventLogger) Stop() {
	l.Consumer.Stop(journalDrainTimeout)
}

func (l *EventLogger) handle(ctx context.Context, event *models.Event) {
	entry := logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"event_id":   event.ID,
	})
	if event.TraceID != "" {
		entry = entry.WithField("trace_id", event.TraceID)
	}
	if event.MachineID != nil {
		entry = entry.WithField("machine_id", *event.MachineID)
	}
	entry.Log(severityLevel(event.Severity), event.Message)

	if event.Type == models.EventTypeTrainingCompleted || event.Type == models.EventTypeTrainingFailed {
		l.record(ctx, event)
	}
}

func (l *EventLogger) record(ctx context.Context, event *models.Event) {
	run := event.Training()
	if l.recorder == nil || run == nil {
		return
	}
	result := run.Result
	if result == nil {
		result = &models.TrainingResult{Success: false, Error: run.Error}
	}
	if err := l.recorder.RecordRun(ctx, run.Trigger, result); err != nil {
		logger.WithField("trace_id", event.TraceID).Errorf("Failed to record %s training run: %v", run.Trigger, err)
	}
}

func severityLevel(s models.EventSeverity) logrus.Level {
	switch s {
	case models.SeverityCritical:
		return logrus.ErrorLevel
	case models.SeverityWarning:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

package events

import (
	"fmt"
	"time"

	"github.com/OldStager01/press-downtime/pkg/models"
)

// Publisher builds domain events and stamps them with a trace id. A nil
// Publisher, or one without a bus, discards everything.
type Publisher struct {
	bus     *EventBus
	traceID string
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) WithTraceID(traceID string) *Publisher {
	if p == nil {
		return nil
	}
	clone := *p
	clone.traceID = traceID
	return &clone
}

func (p *Publisher) emit(t models.EventType, severity models.EventSeverity, msg string, data interface{}) *models.Event {
	if p == nil || p.bus == nil {
		return nil
	}
	event := models.NewEvent(t, msg).WithSeverity(severity).WithData(data)
	if p.traceID != "" {
		event.TraceID = p.traceID
	}
	return event
}

func (p *Publisher) send(event *models.Event) {
	if event != nil {
		p.bus.Publish(event)
	}
}

func (p *Publisher) TrainingStarted(trigger string) {
	p.send(p.emit(models.EventTypeTrainingStarted, models.SeverityInfo,
		fmt.Sprintf("Training started (%s)", trigger),
		&models.TrainingEvent{Trigger: trigger}))
}

func (p *Publisher) TrainingCompleted(trigger string, result *models.TrainingResult) {
	p.send(p.emit(models.EventTypeTrainingCompleted, models.SeverityInfo,
		fmt.Sprintf("Training completed: train=%.3f test=%.3f", result.TrainAccuracy, result.TestAccuracy),
		&models.TrainingEvent{Trigger: trigger, Result: result}))
}

// TrainingFailed reports a run that left the active model in place.
func (p *Publisher) TrainingFailed(trigger string, result *models.TrainingResult) {
	p.send(p.emit(models.EventTypeTrainingFailed, models.SeverityWarning,
		fmt.Sprintf("Training failed (%s): %s", trigger, result.Error),
		&models.TrainingEvent{Trigger: trigger, Result: result, Error: result.Error}))
}

func (p *Publisher) ModelSwapped(version int64, trainedAt time.Time) {
	p.send(p.emit(models.EventTypeModelSwapped, models.SeverityInfo,
		fmt.Sprintf("Model version %d active", version),
		&models.ModelSwapEvent{Version: version, TrainedAt: trainedAt}))
}

// PredictionsGenerated summarizes a prediction run and raises one alert per
// machine with high-risk days, carrying that machine's riskiest day.
func (p *Publisher) PredictionsGenerated(result *models.PredictionResult) {
	severity := models.SeverityInfo
	if result.HighRiskCount > 0 {
		severity = models.SeverityWarning
	}
	p.send(p.emit(models.EventTypePredictionsGenerated, severity,
		fmt.Sprintf("%d predictions, %d high risk", len(result.Predictions), result.HighRiskCount),
		&models.PredictionSummary{
			Predictions:     len(result.Predictions),
			HighRiskCount:   result.HighRiskCount,
			MediumRiskCount: result.MediumRiskCount,
			ModelVersion:    result.ModelVersion,
		}))

	for _, a := range riskAlerts(result.Predictions) {
		p.Alert(a.machineID, models.SeverityWarning,
			fmt.Sprintf("%s: downtime risk %.2f%% on %s", a.MachineName, a.DowntimeRisk, a.Date), &a.RiskAlert)
	}
}

type machineAlert struct {
	machineID int64
	models.RiskAlert
}

// riskAlerts keeps the first high-risk prediction seen per machine, which is
// the riskiest when predictions are sorted by descending risk.
func riskAlerts(predictions []models.Prediction) []machineAlert {
	var alerts []machineAlert
	index := make(map[int64]int)
	for _, pred := range predictions {
		if pred.RiskLevel != models.RiskHigh {
			continue
		}
		if i, ok := index[pred.MachineID]; ok {
			alerts[i].HighRiskDays++
			continue
		}
		index[pred.MachineID] = len(alerts)
		alerts = append(alerts, machineAlert{
			machineID: pred.MachineID,
			RiskAlert: models.RiskAlert{
				MachineName:  pred.MachineName,
				Date:         pred.Date,
				DowntimeRisk: pred.DowntimeRisk,
				RiskLevel:    pred.RiskLevel,
				HighRiskDays: 1,
			},
		})
	}
	return alerts
}

func (p *Publisher) RecommendationsGenerated(result *models.RecommendationResult) {
	severity := models.SeverityInfo
	if result.TotalUrgent > 0 {
		severity = models.SeverityWarning
	}
	p.send(p.emit(models.EventTypeRecommendationsGenerated, severity,
		fmt.Sprintf("%d recommendations, %d urgent", len(result.Recommendations), result.TotalUrgent),
		&models.RecommendationSummary{
			Recommendations: len(result.Recommendations),
			TotalUrgent:     result.TotalUrgent,
			TotalNormal:     result.TotalNormal,
			Status:          result.Status,
		}))
}

func (p *Publisher) Alert(machineID int64, severity models.EventSeverity, message string, data interface{}) {
	event := p.emit(models.EventTypeAlert, severity, message, data)
	if event != nil {
		event.WithMachine(machineID)
	}
	p.send(event)
}

func (p *Publisher) Error(message string, err error) {
	p.send(p.emit(models.EventTypeError, models.SeverityCritical,
		fmt.Sprintf("%s: %v", message, err), nil))
}

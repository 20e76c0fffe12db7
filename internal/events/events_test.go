package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OldStager01/press-downtime/pkg/models"
)

func receive(t *testing.T, ch <-chan *models.Event) *models.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	swapped := bus.Subscribe(models.EventTypeModelSwapped)
	all := bus.SubscribeAll()

	NewPublisher(bus).WithTraceID("trace-1").ModelSwapped(3, time.Now())

	e := receive(t, swapped)
	assert.Equal(t, models.EventTypeModelSwapped, e.Type)
	assert.Equal(t, "trace-1", e.TraceID)

	e = receive(t, all)
	assert.Equal(t, models.EventTypeModelSwapped, e.Type)
}

func TestEventBus_CloseIsIdempotent(t *testing.T) {
	bus := NewEventBus(1)
	all := bus.SubscribeAll()
	_ = bus.Subscribe(models.EventTypeAlert)

	bus.Close()
	bus.Close()
	bus.Publish(models.NewEvent(models.EventTypeAlert, "ignored"))

	_, ok := <-all
	assert.False(t, ok)
}

func TestEventBus_TypedSubscriptionAndDrops(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	lifecycle := bus.Subscribe(models.EventTypeModelSwapped, models.EventTypeTrainingFailed)

	p := NewPublisher(bus)
	p.TrainingStarted("manual")
	p.ModelSwapped(1, time.Now())
	p.ModelSwapped(2, time.Now())

	e := receive(t, lifecycle)
	assert.Equal(t, models.EventTypeModelSwapped, e.Type)
	assert.Len(t, lifecycle, 0)
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestEventBus_SubscribeAfterClose(t *testing.T) {
	bus := NewEventBus(1)
	bus.Close()

	_, ok := <-bus.SubscribeAll()
	assert.False(t, ok)
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.WithTraceID("x").TrainingStarted("manual")
		p.Error("boom", errors.New("boom"))
	})
}

func TestPublisher_PredictionsRaiseHighRiskAlerts(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()
	alerts := bus.Subscribe(models.EventTypeAlert)

	NewPublisher(bus).PredictionsGenerated(&models.PredictionResult{
		Success: true,
		Predictions: []models.Prediction{
			{MachineID: 4, MachineName: "Press D", DowntimeRisk: 91.5, RiskLevel: models.RiskHigh, Date: "2024-03-05"},
			{MachineID: 5, MachineName: "Press E", DowntimeRisk: 12, RiskLevel: models.RiskLow, Date: "2024-03-05"},
		},
		HighRiskCount: 1,
	})

	e := receive(t, alerts)
	require.NotNil(t, e.MachineID)
	assert.Equal(t, int64(4), *e.MachineID)
	assert.Len(t, alerts, 0)
}

func TestRiskAlerts_OnePerMachine(t *testing.T) {
	alerts := riskAlerts([]models.Prediction{
		{MachineID: 1, MachineName: "Press A", DowntimeRisk: 95, RiskLevel: models.RiskHigh, Date: "2024-03-02"},
		{MachineID: 2, MachineName: "Press B", DowntimeRisk: 80, RiskLevel: models.RiskHigh, Date: "2024-03-01"},
		{MachineID: 1, MachineName: "Press A", DowntimeRisk: 75, RiskLevel: models.RiskHigh, Date: "2024-03-01"},
		{MachineID: 3, MachineName: "Press C", DowntimeRisk: 40, RiskLevel: models.RiskMedium, Date: "2024-03-01"},
	})

	require.Len(t, alerts, 2)
	assert.Equal(t, int64(1), alerts[0].machineID)
	assert.Equal(t, "2024-03-02", alerts[0].Date)
	assert.Equal(t, 2, alerts[0].HighRiskDays)
	assert.Equal(t, int64(2), alerts[1].machineID)
	assert.Equal(t, 1, alerts[1].HighRiskDays)
}

func TestConsumer_StopWithoutDrain(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	var handled []models.EventType
	var mu sync.Mutex
	c := NewConsumer("test", bus.SubscribeAll(), func(_ context.Context, e *models.Event) {
		mu.Lock()
		handled = append(handled, e.Type)
		mu.Unlock()
	})
	c.Start()

	NewPublisher(bus).TrainingStarted("manual")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(handled) == 1
	}, time.Second, 10*time.Millisecond)

	assert.False(t, c.Stop(0))
}

func TestConsumer_DrainsAfterBusClose(t *testing.T) {
	bus := NewEventBus(4)
	var count int
	c := NewConsumer("test", bus.SubscribeAll(), func(context.Context, *models.Event) { count++ })
	c.Start()

	p := NewPublisher(bus)
	p.TrainingStarted("scheduled")
	p.ModelSwapped(1, time.Now())
	bus.Close()

	assert.True(t, c.Stop(time.Second))
	assert.Equal(t, 2, count)
}

type runRecorder struct {
	mu   sync.Mutex
	runs []*models.TrainingResult
}

func (r *runRecorder) RecordRun(_ context.Context, _ string, result *models.TrainingResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, result)
	return nil
}

func TestEventLogger_PersistsTrainingRuns(t *testing.T) {
	bus := NewEventBus(10)
	recorder := &runRecorder{}
	l := NewEventLogger(recorder, bus.SubscribeAll())
	l.Start()

	p := NewPublisher(bus)
	p.TrainingCompleted("scheduled", &models.TrainingResult{Success: true, TrainAccuracy: 0.9})
	p.TrainingFailed("manual", models.NewTrainingFailure(errors.New("single class")))
	p.ModelSwapped(1, time.Now())

	bus.Close()
	l.Stop()

	require.Len(t, recorder.runs, 2)
	assert.True(t, recorder.runs[0].Success)
	assert.False(t, recorder.runs[1].Success)
	assert.Equal(t, "single class", recorder.runs[1].Error)
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_ForwardsEvents(t *testing.T) {
	bus := NewEventBus(10)
	writer := &fakeWriter{}
	sink := NewKafkaSink(writer, bus.SubscribeAll(), time.Second)
	sink.Start()

	NewPublisher(bus).ModelSwapped(2, time.Now())
	NewPublisher(bus).Alert(7, models.SeverityWarning, "high risk", nil)
	bus.Close()
	require.NoError(t, sink.Stop())

	require.Len(t, writer.messages, 2)
	assert.Equal(t, "model_swapped", string(writer.messages[0].Key))
	assert.Equal(t, "machine-7", string(writer.messages[1].Key))

	var e models.Event
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &e))
	assert.Equal(t, models.EventTypeModelSwapped, e.Type)
	assert.True(t, writer.closed)
}

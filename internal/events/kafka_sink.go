package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
)

const sinkDrainTimeout = 15 * time.Second

// MessageWriter is the subset of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaSinkConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

func NewKafkaWriter(cfg KafkaSinkConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
	}
}

// KafkaSink forwards bus events to a Kafka topic so the backend can react to
// model lifecycle changes and high-risk alerts. Messages are keyed by machine
// when the event has one so a machine's alerts stay ordered.
type KafkaSink struct {
	*Consumer
	writer       MessageWriter
	writeTimeout time.Duration
}

func NewKafkaSink(writer MessageWriter, events <-chan *models.Event, writeTimeout time.Duration) *KafkaSink {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	s := &KafkaSink{writer: writer, writeTimeout: writeTimeout}
	s.Consumer = NewConsumer("kafka-sink", events, s.forward)
	return s
}

// Stop flushes queued events once the bus is closed, then closes the writer.
func (s *KafkaSink) Stop() error {
	s.Consumer.Stop(sinkDrainTimeout)
	return s.writer.Close()
}

func (s *KafkaSink) forward(ctx context.Context, event *models.Event) {
	msg, err := kafkaMessage(event)
	if err == nil {
		ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
		err = s.writer.WriteMessages(ctx, msg)
		cancel()
	}
	if err != nil {
		logger.WithField("event_type", event.Type).Errorf("Failed to publish event to kafka: %v", err)
	}
}

func kafkaMessage(event *models.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to serialize %s event: %w", event.Type, err)
	}

	key := string(event.Type)
	if event.MachineID != nil {
		key = fmt.Sprintf("machine-%d", *event.MachineID)
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "source-service", Value: []byte("press-downtime")},
		},
	}, nil
}

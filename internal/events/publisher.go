package events

import (
	"fmt"

	"saga-orchestrator/internal/events/kafka"
)

// Publisher is the saga lifecycle event sink, same shape as the
// teacher's messaging.EventPublisher.
type Publisher interface {
	PublishSagaCompleted(event SagaCompletedEvent) error
	PublishSagaCompensated(event SagaCompensatedEvent) error
	PublishSagaFatal(event SagaFatalEvent) error
	Close() error
	IsHealthy() bool
}

// KafkaPublisher implements Publisher over Kafka.
type KafkaPublisher struct {
	producer *kafka.Producer
}

func NewKafkaPublisher(config *kafka.Config) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(config)
	if err != nil {
		return nil, fmt.Errorf("events: kafka publisher: %w", err)
	}
	return &KafkaPublisher{producer: producer}, nil
}

func (p *KafkaPublisher) PublishSagaCompleted(event SagaCompletedEvent) error {
	return p.producer.PublishEvent(kafka.TopicSagaCompleted, event.SagaID, event)
}

func (p *KafkaPublisher) PublishSagaCompensated(event SagaCompensatedEvent) error {
	return p.producer.PublishEvent(kafka.TopicSagaCompensated, event.SagaID, event)
}

func (p *KafkaPublisher) PublishSagaFatal(event SagaFatalEvent) error {
	return p.producer.PublishEvent(kafka.TopicSagaFatal, event.SagaID, event)
}

func (p *KafkaPublisher) Close() error      { return p.producer.Close() }
func (p *KafkaPublisher) IsHealthy() bool   { return p.producer.IsHealthy() }

// NoOpPublisher discards every event; used when Kafka is disabled and
// in tests.
type NoOpPublisher struct{}

func NewNoOpPublisher() *NoOpPublisher { return &NoOpPublisher{} }

func (p *NoOpPublisher) PublishSagaCompleted(SagaCompletedEvent) error     { return nil }
func (p *NoOpPublisher) PublishSagaCompensated(SagaCompensatedEvent) error { return nil }
func (p *NoOpPublisher) PublishSagaFatal(SagaFatalEvent) error             { return nil }
func (p *NoOpPublisher) Close() error                                     { return nil }
func (p *NoOpPublisher) IsHealthy() bool                                  { return true }

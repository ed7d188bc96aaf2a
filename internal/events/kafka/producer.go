package kafka

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"saga-orchestrator/internal/logging"
)

// Producer wraps a Sarama sync producer for event publishing, same
// shape as the teacher's messaging/kafka.Producer.
type Producer struct {
	producer sarama.SyncProducer
	config   *Config
	mu       sync.RWMutex
	closed   bool
}

func NewProducer(config *Config) (*Producer, error) {
	saramaConfig, err := config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("kafka producer: sarama config: %w", err)
	}

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: new sync producer: %w", err)
	}

	logging.Info("kafka producer initialized", map[string]interface{}{
		"brokers":   config.Brokers,
		"client_id": config.ClientID,
	})

	return &Producer{producer: producer, config: config}, nil
}

func (p *Producer) PublishEvent(topic, key string, event interface{}) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("kafka producer: closed")
	}
	p.mu.RUnlock()

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka producer: marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(eventJSON),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logging.Error("kafka producer: send failed", err, map[string]interface{}{"topic": topic, "key": key})
		return fmt.Errorf("kafka producer: send message: %w", err)
	}

	logging.Debug("event published", map[string]interface{}{
		"topic": topic, "partition": partition, "offset": offset, "key": key,
	})
	return nil
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("kafka producer: close: %w", err)
	}
	return nil
}

func (p *Producer) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed
}

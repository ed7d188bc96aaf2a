package kafka

import (
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Config holds Kafka producer configuration, same knobs as the
// teacher's messaging/kafka.Config.
type Config struct {
	Brokers           []string
	ClientID          string
	EnableIdempotence bool
	CompressionType   string
	RequiredAcks      string
	MaxRetries        int
	RetryBackoff      time.Duration
}

// ToSaramaConfig converts to Sarama configuration.
func (c *Config) ToSaramaConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = c.EnableIdempotence
	cfg.Producer.Retry.Max = c.MaxRetries
	cfg.Producer.Retry.Backoff = c.RetryBackoff

	if !c.EnableIdempotence {
		cfg.Net.MaxOpenRequests = 5
	} else {
		cfg.Net.MaxOpenRequests = 1
	}

	switch c.RequiredAcks {
	case "all", "-1":
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	case "1":
		cfg.Producer.RequiredAcks = sarama.WaitForLocal
	case "0":
		cfg.Producer.RequiredAcks = sarama.NoResponse
	default:
		return nil, fmt.Errorf("invalid required acks value: %s", c.RequiredAcks)
	}

	switch c.CompressionType {
	case "none":
		cfg.Producer.Compression = sarama.CompressionNone
	case "gzip":
		cfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		return nil, fmt.Errorf("invalid compression type: %s", c.CompressionType)
	}

	cfg.ClientID = c.ClientID
	cfg.Version = sarama.V3_0_0_0

	return cfg, nil
}

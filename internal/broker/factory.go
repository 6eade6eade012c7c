package broker

import (
	"context"
	"fmt"

	"verdict/internal/config"
	"verdict/internal/logger"
	"verdict/pkg/models"
)

// NewProducer builds a producer for the configured broker type. An empty type
// yields a no-op producer so decision recording never depends on a broker
// being deployed.
func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	switch cfg.Type {
	case "":
		return NoopProducer{}, nil
	case "kafka":
		return NewKafkaProducer(cfg.Kafka, log), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}

type NoopProducer struct{}

func (NoopProducer) Publish(ctx context.Context, topic string, event models.DecisionRecordedEvent) error {
	return nil
}

func (NoopProducer) Close() error {
	return nil
}

package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"verdict/internal/config"
	"verdict/internal/constants"
	"verdict/internal/logger"
	"verdict/pkg/models"
	"verdict/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

// Publish writes a decision event keyed by workflow so all decisions for a
// workflow land on the same partition in order.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, event models.DecisionRecordedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal decision event: %w", err)
	}

	headers := []kafka.Header{}
	headers = tracing.InjectTraceContext(ctx, headers)

	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(event.WorkflowID),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

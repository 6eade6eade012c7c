package audit

import (
	"context"
	"time"

	"verdict/internal/broker"
	"verdict/internal/config"
	"verdict/internal/constants"
	"verdict/internal/logger"
	"verdict/pkg/metrics"
	"verdict/pkg/models"
	"verdict/pkg/retry"
)

// DecisionEventPublisher announces persisted decisions on the broker.
// Publishing is best effort: the decision is already durable in Postgres, so
// a broker outage degrades downstream alerting but never fails an audit.
type DecisionEventPublisher struct {
	producer broker.Producer
	topic    string
	retryCfg config.RetryConfig
	logger   logger.Logger
}

func NewDecisionEventPublisher(producer broker.Producer, cfg config.KafkaConfig, log logger.Logger) *DecisionEventPublisher {
	topic := cfg.DecisionTopic
	if topic == "" {
		topic = constants.DefaultDecisionTopic
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts <= 0 {
		retryCfg.MaxAttempts = 3
	}
	if retryCfg.InitialInterval <= 0 {
		retryCfg.InitialInterval = 500 * time.Millisecond
	}
	if retryCfg.MaxInterval <= 0 {
		retryCfg.MaxInterval = 5 * time.Second
	}
	if retryCfg.Multiplier <= 0 {
		retryCfg.Multiplier = 2.0
	}
	return &DecisionEventPublisher{
		producer: producer,
		topic:    topic,
		retryCfg: retryCfg,
		logger:   log,
	}
}

func (p *DecisionEventPublisher) PublishDecision(ctx context.Context, decision *models.ComplianceDecision, replayed bool) {
	event := models.DecisionRecordedEvent{
		EventType:     models.EventTypeDecisionRecorded,
		DecisionID:    decision.ID,
		WorkflowID:    decision.WorkflowID,
		Decision:      decision.Decision,
		ViolatedRules: decision.ViolatedRules,
		Replayed:      replayed,
		Timestamp:     time.Now(),
	}

	policy := retry.ExponentialBackoff(
		p.retryCfg.InitialInterval,
		p.retryCfg.MaxInterval,
		p.retryCfg.Multiplier,
	)

	err := retry.Do(ctx, func() error {
		return p.producer.Publish(ctx, p.topic, event)
	}, policy, uint64(p.retryCfg.MaxAttempts))

	if err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to publish decision event",
			"decision_id", decision.ID,
			"workflow_id", decision.WorkflowID,
			"error", err,
		)
		metrics.IncDecisionEvent("error")
		return
	}

	metrics.IncDecisionEvent("success")
}

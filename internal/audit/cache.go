package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"verdict/internal/constants"
	"verdict/internal/logger"
	"verdict/pkg/metrics"
	"verdict/pkg/models"
)

// DecisionCache keeps the latest decision per workflow in Redis so dashboard
// and history reads do not hit Postgres for hot workflows. A nil client
// disables caching entirely.
type DecisionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewDecisionCache(client *redis.Client, ttlSeconds int, log logger.Logger) *DecisionCache {
	if ttlSeconds <= 0 {
		ttlSeconds = constants.DefaultDecisionCacheTTLSeconds
	}
	return &DecisionCache{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
		logger: log,
	}
}

func (c *DecisionCache) GetLatest(ctx context.Context, workflowID string) (*models.ComplianceDecision, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, cacheKey(workflowID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnwCtx(ctx, "Decision cache read failed", "workflow_id", workflowID, "error", err)
			metrics.IncDecisionCache("error")
			return nil, false
		}
		metrics.IncDecisionCache("miss")
		return nil, false
	}

	var decision models.ComplianceDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		metrics.IncDecisionCache("error")
		return nil, false
	}

	metrics.IncDecisionCache("hit")
	return &decision, true
}

func (c *DecisionCache) SetLatest(ctx context.Context, decision *models.ComplianceDecision) {
	if c == nil || c.client == nil {
		return
	}

	raw, err := json.Marshal(decision)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, cacheKey(decision.WorkflowID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Decision cache write failed", "workflow_id", decision.WorkflowID, "error", err)
		metrics.IncDecisionCache("error")
	}
}

func cacheKey(workflowID string) string {
	return constants.CacheKeyPrefixDecision + workflowID
}

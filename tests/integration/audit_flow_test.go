package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/audit"
	"verdict/internal/reasoning"
	"verdict/internal/rules"
	"verdict/internal/workflows"
	pkgerrors "verdict/pkg/errors"
	"verdict/pkg/models"
)

const nonCompliantResponse = "```json\n" + `{
  "workflow_id": "WF-400",
  "evaluations": [
    {
      "rule_id": "NYDFS-500.12",
      "status": "NON_COMPLIANT",
      "reasoning_steps": [
        {"step": "Applicability Check", "result": "Applicable", "detail": "access came from an external network"},
        {"step": "Obligation Check", "result": "Violated", "detail": "mfa_used is false"}
      ]
    }
  ]
}` + "\n```"

const compliantResponse = "```json\n" + `{
  "workflow_id": "WF-400",
  "evaluations": [
    {
      "rule_id": "NYDFS-500.12",
      "status": "COMPLIANT",
      "reasoning_steps": [
        {"step": "Applicability Check", "result": "Applicable", "detail": "access came from an external network"},
        {"step": "Obligation Check", "result": "Satisfied", "detail": "mfa_used is true"}
      ]
    }
  ]
}` + "\n```"

func newAuditService(t *testing.T, infra *TestInfra, completer reasoning.Completer) audit.Service {
	t.Helper()

	log := createTestLogger()
	reasoner := reasoning.NewReasoner(completer, 5*time.Second, log)
	cache := audit.NewDecisionCache(infra.RedisClient, 60, log)

	return audit.NewService(
		audit.NewRepository(infra.PostgresDB),
		workflows.NewRepository(infra.PostgresDB),
		rules.NewRepository(infra.PostgresDB),
		reasoner,
		cache,
		nil,
		log,
	)
}

func TestAuditFlowEndToEnd(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true)
	ctx := context.Background()

	rulesRepo := rules.NewRepository(infra.PostgresDB)
	require.NoError(t, rulesRepo.CreateRule(ctx, createTestRule("NYDFS-500.12", models.SeverityHigh)))
	require.NoError(t, rulesRepo.CreateStructuredRule(ctx, createTestStructuredRule("NYDFS-500.12", "1", models.SeverityHigh)))

	eventsRepo := workflows.NewRepository(infra.PostgresDB)
	require.NoError(t, eventsRepo.CreateEvent(ctx, createTestEvent("WF-400", false)))

	completer := &scriptedCompleter{responses: []string{nonCompliantResponse}}
	svc := newAuditService(t, infra, completer)

	decision, err := svc.AuditWorkflow(ctx, "WF-400")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeNonCompliant, decision.Decision)
	assert.Equal(t, []string{"NYDFS-500.12"}, decision.ViolatedRules)
	assert.Equal(t, map[string]string{"NYDFS-500.12": "1"}, decision.RuleVersions)
	require.Len(t, decision.ReasoningTrace, 1)
	assert.Len(t, decision.ReasoningTrace[0].Steps, 2)
	assert.Equal(t, 1, completer.calls)

	// The persisted decision round-trips through Postgres intact.
	stored, err := svc.GetWorkflowDecisions(ctx, "WF-400")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, decision.ID, stored[0].ID)
	assert.Equal(t, decision.RuleVersions, stored[0].RuleVersions)

	// The latest decision is served from the Redis cache.
	latest, err := svc.GetLatestDecision(ctx, "WF-400")
	require.NoError(t, err)
	assert.Equal(t, decision.ID, latest.ID)
}

func TestReplayUsesPinnedRevisionsAndHistoricEvent(t *testing.T) {
	infra := SetupTestInfraWithOptions(t, true, true)
	ctx := context.Background()

	rulesRepo := rules.NewRepository(infra.PostgresDB)
	require.NoError(t, rulesRepo.CreateRule(ctx, createTestRule("NYDFS-500.12", models.SeverityHigh)))
	require.NoError(t, rulesRepo.CreateStructuredRule(ctx, createTestStructuredRule("NYDFS-500.12", "1", models.SeverityHigh)))

	eventsRepo := workflows.NewRepository(infra.PostgresDB)
	require.NoError(t, eventsRepo.CreateEvent(ctx, createTestEvent("WF-400", false)))

	completer := &scriptedCompleter{responses: []string{nonCompliantResponse, compliantResponse}}
	svc := newAuditService(t, infra, completer)

	original, err := svc.AuditWorkflow(ctx, "WF-400")
	require.NoError(t, err)
	require.Equal(t, models.OutcomeNonCompliant, original.Decision)

	// The rule moves on and a newer event arrives. Neither may leak into the
	// replay.
	time.Sleep(timestampDelay)
	v2 := createTestStructuredRule("NYDFS-500.12", "2", models.SeverityLow)
	require.NoError(t, rulesRepo.CreateStructuredRule(ctx, v2))
	require.NoError(t, eventsRepo.CreateEvent(ctx, createTestEvent("WF-400", true)))

	replayed, err := svc.ReplayDecision(ctx, "WF-400", original.ID)
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, replayed.ID)
	assert.Equal(t, original.RuleVersions, replayed.RuleVersions)
	assert.Equal(t, models.OutcomeCompliant, replayed.Decision)
	assert.Equal(t, 2, completer.calls)

	history, err := svc.GetWorkflowDecisions(ctx, "WF-400")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAuditDegradesOnReasoningFailure(t *testing.T) {
	infra := SetupTestInfra(t)
	ctx := context.Background()

	rulesRepo := rules.NewRepository(infra.PostgresDB)
	require.NoError(t, rulesRepo.CreateRule(ctx, createTestRule("NYDFS-500.12", models.SeverityHigh)))
	require.NoError(t, rulesRepo.CreateStructuredRule(ctx, createTestStructuredRule("NYDFS-500.12", "1", models.SeverityHigh)))

	eventsRepo := workflows.NewRepository(infra.PostgresDB)
	require.NoError(t, eventsRepo.CreateEvent(ctx, createTestEvent("WF-500", false)))

	svc := newAuditService(t, infra, reasoning.Unavailable())

	decision, err := svc.AuditWorkflow(ctx, "WF-500")
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeRequiresReview, decision.Decision)
	require.Len(t, decision.ReasoningTrace, 1)
	assert.Equal(t, "System Diagnostic", decision.ReasoningTrace[0].RuleID)
}

func TestAuditWorkflowWithoutEvents(t *testing.T) {
	infra := SetupTestInfra(t)
	svc := newAuditService(t, infra, reasoning.Unavailable())

	_, err := svc.AuditWorkflow(context.Background(), "WF-EMPTY")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

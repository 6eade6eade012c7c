package reasoning

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/logger"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/models"
)

func testEvent() models.WorkflowEvent {
	return models.WorkflowEvent{
		ID:           "6f4fd9aa-0000-4111-8222-333344445555",
		WorkflowID:   "WF-1001",
		WorkflowType: models.WorkflowClaimProcessing,
		Attributes: map[string]interface{}{
			"claim_amount": 125000.0,
			"approved_by":  "adjuster-17",
		},
		ActorID:      "adjuster-17",
		SourceSystem: "claims-portal",
		SubmittedAt:  time.Now(),
	}
}

func testStructuredRules() []models.StructuredRule {
	return []models.StructuredRule{
		{
			RuleID:                  "FIN-002",
			Version:                 "1",
			ApplicabilityConditions: []string{"claim amount exceeds 100000"},
			Obligations:             []string{"senior manager approval is required"},
			Exceptions:              []string{},
			Severity:                models.SeverityHigh,
		},
		{
			RuleID:                  "OPS-003",
			Version:                 "2",
			ApplicabilityConditions: []string{"workflow is a claim"},
			Obligations:             []string{"claim must be resolved within 30 days"},
			Exceptions:              []string{"litigation hold"},
			Severity:                models.SeverityMedium,
		},
	}
}

const validEvaluationResponse = `{
	"workflow_id": "WF-1001",
	"evaluations": [
		{
			"rule_id": "FIN-002",
			"status": "NON_COMPLIANT",
			"reasoning_steps": [
				{"step": "Applicability Check", "result": "APPLIES", "detail": "claim amount is 125000"},
				{"step": "Condition Evaluation", "result": "MET", "detail": "amount exceeds threshold"},
				{"step": "Obligation Validation", "result": "NOT_FULFILLED", "detail": "no senior manager approval found"},
				{"step": "Exception Handling", "result": "NONE", "detail": "no exceptions apply"},
				{"step": "Violation Detection", "result": "VIOLATION", "detail": "approval obligation unmet"}
			]
		},
		{
			"rule_id": "OPS-003",
			"status": "COMPLIANT",
			"reasoning_steps": [
				{"step": "Applicability Check", "result": "APPLIES", "detail": "event is a claim"},
				{"step": "Condition Evaluation", "result": "MET", "detail": ""},
				{"step": "Obligation Validation", "result": "FULFILLED", "detail": "claim is 12 days old"},
				{"step": "Exception Handling", "result": "NONE", "detail": ""},
				{"step": "Violation Detection", "result": "NO_VIOLATION", "detail": ""}
			]
		}
	]
}`

func TestReasonerEvaluate(t *testing.T) {
	completer := &fakeCompleter{response: "```json\n" + validEvaluationResponse + "\n```"}
	reasoner := NewReasoner(completer, time.Second, logger.NopLogger())

	result, err := reasoner.Evaluate(context.Background(), testEvent(), testStructuredRules())
	require.NoError(t, err)

	assert.Equal(t, "WF-1001", result.WorkflowID)
	require.Len(t, result.Evaluations, 2)
	assert.Equal(t, "FIN-002", result.Evaluations[0].RuleID)
	assert.Equal(t, models.OutcomeNonCompliant, result.Evaluations[0].Status)
	assert.Len(t, result.Evaluations[0].ReasoningSteps, 5)
	assert.Equal(t, models.OutcomeCompliant, result.Evaluations[1].Status)

	assert.Contains(t, completer.lastUser, "WF-1001")
	assert.Contains(t, completer.lastUser, "FIN-002")
	assert.Contains(t, completer.lastUser, "OPS-003")
	assert.NotContains(t, completer.lastUser, "raw_model_output")
}

func TestReasonerTimeout(t *testing.T) {
	completer := &fakeCompleter{delay: 200 * time.Millisecond}
	reasoner := NewReasoner(completer, 10*time.Millisecond, logger.NopLogger())

	_, err := reasoner.Evaluate(context.Background(), testEvent(), testStructuredRules())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrReasoningTimeout))
}

func TestReasonerMalformedOutput(t *testing.T) {
	completer := &fakeCompleter{response: "everything looks compliant to me!"}
	reasoner := NewReasoner(completer, time.Second, logger.NopLogger())

	_, err := reasoner.Evaluate(context.Background(), testEvent(), testStructuredRules())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedOutput))
}

func TestReasonerInvalidShape(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{
			name:     "workflow_id mismatch",
			response: `{"workflow_id": "WF-9999", "evaluations": []}`,
		},
		{
			name:     "missing evaluations",
			response: `{"workflow_id": "WF-1001"}`,
		},
		{
			name: "unknown rule in evaluations",
			response: `{"workflow_id": "WF-1001", "evaluations": [
				{"rule_id": "GHOST-1", "status": "COMPLIANT", "reasoning_steps": []}]}`,
		},
		{
			name: "invalid status",
			response: `{"workflow_id": "WF-1001", "evaluations": [
				{"rule_id": "FIN-002", "status": "MAYBE", "reasoning_steps": []}]}`,
		},
		{
			name: "requires review is not a per-rule verdict",
			response: `{"workflow_id": "WF-1001", "evaluations": [
				{"rule_id": "FIN-002", "status": "REQUIRES_REVIEW", "reasoning_steps": []}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{response: tt.response}
			reasoner := NewReasoner(completer, time.Second, logger.NopLogger())

			_, err := reasoner.Evaluate(context.Background(), testEvent(), testStructuredRules())
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrReasoningMalformed))
		})
	}
}

func TestReasonerEmptyEvaluationsIsValid(t *testing.T) {
	completer := &fakeCompleter{response: `{"workflow_id": "WF-1001", "evaluations": []}`}
	reasoner := NewReasoner(completer, time.Second, logger.NopLogger())

	result, err := reasoner.Evaluate(context.Background(), testEvent(), testStructuredRules())
	require.NoError(t, err)
	assert.Empty(t, result.Evaluations)
}

package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"verdict/pkg/models"
)

func TestDecide(t *testing.T) {
	severities := map[string]models.RuleSeverity{
		"PRIV-001": models.SeverityHigh,
		"OPS-003":  models.SeverityMedium,
		"FIN-002":  models.SeverityLow,
	}

	tests := []struct {
		name        string
		evaluations []models.RuleEvaluation
		expected    models.DecisionOutcome
	}{
		{
			name:        "no evaluations is compliant",
			evaluations: nil,
			expected:    models.OutcomeCompliant,
		},
		{
			name: "all compliant",
			evaluations: []models.RuleEvaluation{
				{RuleID: "PRIV-001", Status: models.OutcomeCompliant},
				{RuleID: "OPS-003", Status: models.OutcomeCompliant},
			},
			expected: models.OutcomeCompliant,
		},
		{
			name: "single low severity violation is still non compliant",
			evaluations: []models.RuleEvaluation{
				{RuleID: "PRIV-001", Status: models.OutcomeCompliant},
				{RuleID: "FIN-002", Status: models.OutcomeNonCompliant},
			},
			expected: models.OutcomeNonCompliant,
		},
		{
			name: "high severity violation",
			evaluations: []models.RuleEvaluation{
				{RuleID: "PRIV-001", Status: models.OutcomeNonCompliant},
			},
			expected: models.OutcomeNonCompliant,
		},
		{
			name: "violation with unknown severity",
			evaluations: []models.RuleEvaluation{
				{RuleID: "UNKNOWN-9", Status: models.OutcomeNonCompliant},
			},
			expected: models.OutcomeNonCompliant,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decide(tt.evaluations, severities))
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	evaluations := []models.RuleEvaluation{
		{RuleID: "OPS-003", Status: models.OutcomeNonCompliant},
		{RuleID: "PRIV-001", Status: models.OutcomeCompliant},
	}
	severities := map[string]models.RuleSeverity{"OPS-003": models.SeverityMedium}

	first := Decide(evaluations, severities)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Decide(evaluations, severities))
	}
}

func TestViolatedRules(t *testing.T) {
	evaluations := []models.RuleEvaluation{
		{RuleID: "OPS-003", Status: models.OutcomeNonCompliant},
		{RuleID: "PRIV-001", Status: models.OutcomeCompliant},
		{RuleID: "FIN-002", Status: models.OutcomeNonCompliant},
	}

	assert.Equal(t, []string{"FIN-002", "OPS-003"}, ViolatedRules(evaluations))
	assert.Empty(t, ViolatedRules(nil))
	assert.NotNil(t, ViolatedRules(nil))
}

func TestResolveConflictsIsIdentity(t *testing.T) {
	evaluations := []models.RuleEvaluation{
		{RuleID: "PRIV-001", Status: models.OutcomeNonCompliant},
		{RuleID: "OPS-003", Status: models.OutcomeCompliant},
	}

	assert.Equal(t, evaluations, ResolveConflicts(evaluations))
}

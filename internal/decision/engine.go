// Package decision derives the overall audit outcome from per-rule verdicts.
// Everything here is pure: same inputs, same outcome, no I/O.
package decision

import (
	"sort"

	"verdict/pkg/models"
)

// Decide computes the overall outcome for a set of per-rule evaluations.
// Severities carry the severity of each evaluated rule keyed by rule_id.
func Decide(evaluations []models.RuleEvaluation, severities map[string]models.RuleSeverity) models.DecisionOutcome {
	violated := ViolatedRules(evaluations)
	if len(violated) == 0 {
		return models.OutcomeCompliant
	}

	hasHighViolation := false
	for _, ruleID := range violated {
		if severities[ruleID] == models.SeverityHigh {
			hasHighViolation = true
		}
	}

	// Severity is computed for future graduated policies but does not change
	// the outcome today: any violation is NON_COMPLIANT.
	_ = hasHighViolation

	return models.OutcomeNonCompliant
}

// ViolatedRules returns the sorted rule_ids whose verdict is NON_COMPLIANT.
func ViolatedRules(evaluations []models.RuleEvaluation) []string {
	violated := make([]string, 0)
	for _, eval := range evaluations {
		if eval.Status == models.OutcomeNonCompliant {
			violated = append(violated, eval.RuleID)
		}
	}
	sort.Strings(violated)
	return violated
}

// ResolveConflicts is an identity pass today. It exists as the seam where
// verdicts from multiple reasoners would be reconciled.
func ResolveConflicts(evaluations []models.RuleEvaluation) []models.RuleEvaluation {
	return evaluations
}

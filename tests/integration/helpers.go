package integration

import (
	"context"
	"fmt"
	"time"

	"verdict/internal/logger"
	"verdict/pkg/models"
)

const timestampDelay = 10 * time.Millisecond

func createTestLogger() logger.Logger {
	return logger.NopLogger()
}

func createTestRule(ruleID string, severity models.RuleSeverity) *models.ComplianceRule {
	return &models.ComplianceRule{
		RuleID:   ruleID,
		Category: models.CategorySecurity,
		RuleText: "Multi-Factor Authentication must be implemented for external network access.",
		Severity: severity,
		Version:  "1",
		Status:   models.RuleStatusActive,
	}
}

func createTestStructuredRule(ruleID, version string, severity models.RuleSeverity) *models.StructuredRule {
	return &models.StructuredRule{
		RuleID:                  ruleID,
		Version:                 version,
		ApplicabilityConditions: []string{"access originates from an external network"},
		Obligations:             []string{"multi-factor authentication must be used"},
		Exceptions:              []string{},
		Severity:                severity,
	}
}

func createTestEvent(workflowID string, mfaUsed bool) *models.WorkflowEvent {
	return &models.WorkflowEvent{
		WorkflowID:   workflowID,
		WorkflowType: models.WorkflowDataAccessRequest,
		Attributes: map[string]interface{}{
			"access_type": "external",
			"mfa_used":    mfaUsed,
		},
		ActorID:      "remote_user_01",
		SourceSystem: "vpn_gateway",
	}
}

// scriptedCompleter returns canned model output so audit flows run without a
// live reasoning provider.
type scriptedCompleter struct {
	responses []string
	err       error
	calls     int
}

func (c *scriptedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if len(c.responses) == 0 {
		return "", fmt.Errorf("no scripted response left")
	}
	resp := c.responses[0]
	if len(c.responses) > 1 {
		c.responses = c.responses[1:]
	}
	return resp, nil
}

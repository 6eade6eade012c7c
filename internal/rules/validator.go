package rules

import (
	"fmt"
	"strings"

	"verdict/pkg/models"
)

const maxRuleTextLength = 10000

func ValidateCreateRule(req CreateRuleRequest) error {
	if strings.TrimSpace(req.RuleID) == "" {
		return fmt.Errorf("rule_id is required")
	}
	if strings.TrimSpace(req.RuleText) == "" {
		return fmt.Errorf("rule_text is required")
	}
	if len(req.RuleText) > maxRuleTextLength {
		return fmt.Errorf("rule_text exceeds maximum length of %d", maxRuleTextLength)
	}
	if !models.RuleCategory(req.Category).Valid() {
		return fmt.Errorf("invalid category: %s", req.Category)
	}
	if !models.RuleSeverity(req.Severity).Valid() {
		return fmt.Errorf("invalid severity: %s", req.Severity)
	}
	return nil
}

func ValidateUpdateRule(req UpdateRuleRequest) error {
	if req.Category == nil && req.RuleText == nil && req.Severity == nil && req.Status == nil {
		return fmt.Errorf("at least one field must be provided")
	}
	if req.RuleText != nil {
		if strings.TrimSpace(*req.RuleText) == "" {
			return fmt.Errorf("rule_text cannot be empty")
		}
		if len(*req.RuleText) > maxRuleTextLength {
			return fmt.Errorf("rule_text exceeds maximum length of %d", maxRuleTextLength)
		}
	}
	if req.Category != nil && !models.RuleCategory(*req.Category).Valid() {
		return fmt.Errorf("invalid category: %s", *req.Category)
	}
	if req.Severity != nil && !models.RuleSeverity(*req.Severity).Valid() {
		return fmt.Errorf("invalid severity: %s", *req.Severity)
	}
	if req.Status != nil && !models.RuleStatus(*req.Status).Valid() {
		return fmt.Errorf("invalid status: %s", *req.Status)
	}
	return nil
}

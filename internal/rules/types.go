package rules

import "time"

type CreateRuleRequest struct {
	RuleID        string     `json:"rule_id" binding:"required"`
	Category      string     `json:"category" binding:"required"`
	RuleText      string     `json:"rule_text" binding:"required"`
	Severity      string     `json:"severity" binding:"required"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
}

type UpdateRuleRequest struct {
	Category *string `json:"category,omitempty"`
	RuleText *string `json:"rule_text,omitempty"`
	Severity *string `json:"severity,omitempty"`
	Status   *string `json:"status,omitempty"`
}

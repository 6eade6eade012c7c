package models

import "time"

type WorkflowType string

const (
	WorkflowClaimProcessing    WorkflowType = "CLAIM_PROCESSING"
	WorkflowPolicyIssuance     WorkflowType = "POLICY_ISSUANCE"
	WorkflowDataAccessRequest  WorkflowType = "DATA_ACCESS_REQUEST"
	WorkflowApprovalEscalation WorkflowType = "APPROVAL_ESCALATION"
)

func (t WorkflowType) Valid() bool {
	switch t {
	case WorkflowClaimProcessing, WorkflowPolicyIssuance, WorkflowDataAccessRequest, WorkflowApprovalEscalation:
		return true
	}
	return false
}

type RuleCategory string

const (
	CategoryPrivacy     RuleCategory = "PRIVACY"
	CategorySecurity    RuleCategory = "SECURITY"
	CategoryOperational RuleCategory = "OPERATIONAL"
	CategoryFinancial   RuleCategory = "FINANCIAL"
)

func (c RuleCategory) Valid() bool {
	switch c {
	case CategoryPrivacy, CategorySecurity, CategoryOperational, CategoryFinancial:
		return true
	}
	return false
}

type RuleSeverity string

const (
	SeverityLow    RuleSeverity = "LOW"
	SeverityMedium RuleSeverity = "MEDIUM"
	SeverityHigh   RuleSeverity = "HIGH"
)

func (s RuleSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

type RuleStatus string

const (
	RuleStatusActive     RuleStatus = "ACTIVE"
	RuleStatusDeprecated RuleStatus = "DEPRECATED"
)

func (s RuleStatus) Valid() bool {
	return s == RuleStatusActive || s == RuleStatusDeprecated
}

type DecisionOutcome string

const (
	OutcomeCompliant      DecisionOutcome = "COMPLIANT"
	OutcomeNonCompliant   DecisionOutcome = "NON_COMPLIANT"
	OutcomeRequiresReview DecisionOutcome = "REQUIRES_REVIEW"
)

// ComplianceRule is a human-authored regulatory rule in free text plus metadata.
// rule_id is not globally unique on its own: each edit produces a new version,
// and (rule_id, version) identifies one revision.
type ComplianceRule struct {
	ID            string       `json:"id" db:"id"`
	RuleID        string       `json:"rule_id" db:"rule_id"`
	Category      RuleCategory `json:"category" db:"category"`
	RuleText      string       `json:"rule_text" db:"rule_text"`
	Severity      RuleSeverity `json:"severity" db:"severity"`
	Version       string       `json:"version" db:"version"`
	Status        RuleStatus   `json:"status" db:"status"`
	EffectiveFrom time.Time    `json:"effective_from" db:"effective_from"`
}

// StructuredRule is the machine-evaluable decomposition of one ComplianceRule
// revision. Rows are append-only; the current structured form of a rule_id is
// the most recently created row.
type StructuredRule struct {
	ID                      string       `json:"id" db:"id"`
	RuleID                  string       `json:"rule_id" db:"rule_id"`
	Version                 string       `json:"version" db:"version"`
	ApplicabilityConditions []string     `json:"applicability_conditions" db:"applicability_conditions"`
	Obligations             []string     `json:"obligations" db:"obligations"`
	Exceptions              []string     `json:"exceptions" db:"exceptions"`
	Severity                RuleSeverity `json:"severity" db:"severity"`
	RawModelOutput          string       `json:"raw_model_output,omitempty" db:"raw_model_output"`
	CreatedAt               time.Time    `json:"created_at" db:"created_at"`
}

// Key returns the compound identity used for replay pinning.
func (r StructuredRule) Key() RuleVersionKey {
	return RuleVersionKey{RuleID: r.RuleID, Version: r.Version}
}

// RuleVersionKey is the compound (rule_id, version) identity of one rule
// revision.
type RuleVersionKey struct {
	RuleID  string `json:"rule_id"`
	Version string `json:"version"`
}

// WorkflowEvent is an immutable record of a business action to be audited.
// A workflow_id accumulates events over time; audits use the latest unless
// replaying.
type WorkflowEvent struct {
	ID           string                 `json:"id" db:"id"`
	WorkflowID   string                 `json:"workflow_id" db:"workflow_id"`
	WorkflowType WorkflowType           `json:"workflow_type" db:"workflow_type"`
	Attributes   map[string]interface{} `json:"attributes" db:"attributes"`
	ActorID      string                 `json:"actor_id" db:"actor_id"`
	SourceSystem string                 `json:"source_system" db:"source_system"`
	SubmittedAt  time.Time              `json:"submitted_at" db:"submitted_at"`
}

// ReasoningStep is one step of the five-step evaluation protocol for a rule.
type ReasoningStep struct {
	Step   string `json:"step"`
	Result string `json:"result"`
	Detail string `json:"detail"`
}

// RuleEvaluation is the per-rule verdict produced by the compliance reasoner.
type RuleEvaluation struct {
	RuleID         string          `json:"rule_id"`
	Status         DecisionOutcome `json:"status"`
	ReasoningSteps []ReasoningStep `json:"reasoning_steps"`
}

// EvaluationResult is the validated output of one reasoning call covering the
// full rule set for a workflow event.
type EvaluationResult struct {
	WorkflowID  string           `json:"workflow_id"`
	Evaluations []RuleEvaluation `json:"evaluations"`
}

// TraceEntry groups the reasoning steps recorded for one rule in a decision's
// reasoning trace.
type TraceEntry struct {
	RuleID string          `json:"rule_id"`
	Steps  []ReasoningStep `json:"steps"`
}

// ComplianceDecision is an immutable audit record. RuleVersions pins the exact
// StructuredRule versions evaluated, which is what makes replay faithful.
type ComplianceDecision struct {
	ID             string            `json:"id" db:"id"`
	WorkflowID     string            `json:"workflow_id" db:"workflow_id"`
	Decision       DecisionOutcome   `json:"decision" db:"decision"`
	ViolatedRules  []string          `json:"violated_rules" db:"violated_rules"`
	ReasoningTrace []TraceEntry      `json:"reasoning_trace" db:"reasoning_trace"`
	RuleVersions   map[string]string `json:"rule_versions" db:"rule_versions"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}

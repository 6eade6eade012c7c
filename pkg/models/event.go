package models

import "time"

// DecisionRecordedEvent is published to the broker after a ComplianceDecision
// is persisted, for downstream consumers (alerting, reporting).
type DecisionRecordedEvent struct {
	EventType     string          `json:"event_type"`
	DecisionID    string          `json:"decision_id"`
	WorkflowID    string          `json:"workflow_id"`
	Decision      DecisionOutcome `json:"decision"`
	ViolatedRules []string        `json:"violated_rules"`
	Replayed      bool            `json:"replayed"`
	Timestamp     time.Time       `json:"timestamp"`
}

const EventTypeDecisionRecorded = "decision_recorded"

package workflows

import "time"

type CreateEventRequest struct {
	WorkflowID   string                 `json:"workflow_id" binding:"required"`
	WorkflowType string                 `json:"workflow_type" binding:"required"`
	Attributes   map[string]interface{} `json:"attributes" binding:"required"`
	ActorID      string                 `json:"actor_id" binding:"required"`
	SourceSystem string                 `json:"source_system"`
	SubmittedAt  *time.Time             `json:"submitted_at,omitempty"`
}

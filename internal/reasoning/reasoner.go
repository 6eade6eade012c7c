package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"verdict/internal/logger"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/metrics"
	"verdict/pkg/models"
)

const reasonerSystemPrompt = `You are an expert insurance auditor. Your job is to analyze a workflow event and determine if it complies with a specific set of structured rules. You must follow a strict reasoning protocol:
1. Applicability check: Does the rule apply to this event?
2. Condition evaluation: Are the conditions met?
3. Obligation validation: Are the obligations fulfilled?
4. Exception handling: Do any exceptions apply?
5. Violation detection: Is there a violation?

You must provide a step-by-step reasoning trace for each rule.`

const reasonerUserPrompt = `Evaluate the following workflow event against the rules.

Workflow Event:
ID: %s
Type: %s
Actor: %s
Attributes: %s

Structured Rules:
%s

For EACH rule, follow the reasoning protocol and determine if it is COMPLIANT or NON_COMPLIANT.

Output MUST be a valid JSON matching this structure:
{
    "workflow_id": "%s",
    "evaluations": [
        {
            "rule_id": "string",
            "status": "COMPLIANT | NON_COMPLIANT",
            "reasoning_steps": [
                {"step": "Applicability Check", "result": "...", "detail": "..."},
                {"step": "Condition Evaluation", "result": "...", "detail": "..."},
                {"step": "Obligation Validation", "result": "...", "detail": "..."},
                {"step": "Exception Handling", "result": "...", "detail": "..."},
                {"step": "Violation Detection", "result": "...", "detail": "..."}
            ]
        }
    ]
}`

// promptRule is the rule projection embedded in the evaluation prompt. The raw
// model output from interpretation is deliberately left out.
type promptRule struct {
	RuleID                  string   `json:"rule_id"`
	Version                 string   `json:"version"`
	ApplicabilityConditions []string `json:"applicability_conditions"`
	Obligations             []string `json:"obligations"`
	Exceptions              []string `json:"exceptions"`
	Severity                string   `json:"severity"`
}

// Reasoner evaluates one workflow event against a full rule set in a single
// bounded call to the reasoning model. One audit costs exactly one external
// call no matter how many rules are active.
type Reasoner struct {
	completer Completer
	timeout   time.Duration
	logger    logger.Logger
}

func NewReasoner(completer Completer, timeout time.Duration, log logger.Logger) *Reasoner {
	return &Reasoner{
		completer: completer,
		timeout:   timeout,
		logger:    log,
	}
}

// Evaluate returns the per-rule verdicts and reasoning traces for the event.
// It does not persist anything and makes no decision about the overall
// outcome.
func (r *Reasoner) Evaluate(ctx context.Context, event models.WorkflowEvent, rules []models.StructuredRule) (models.EvaluationResult, error) {
	attrs, err := json.Marshal(event.Attributes)
	if err != nil {
		return models.EvaluationResult{}, apperrors.ErrInternal.WithCause(err)
	}

	prompt := make([]promptRule, 0, len(rules))
	for _, rule := range rules {
		prompt = append(prompt, promptRule{
			RuleID:                  rule.RuleID,
			Version:                 rule.Version,
			ApplicabilityConditions: rule.ApplicabilityConditions,
			Obligations:             rule.Obligations,
			Exceptions:              rule.Exceptions,
			Severity:                string(rule.Severity),
		})
	}
	rulesJSON, err := json.Marshal(prompt)
	if err != nil {
		return models.EvaluationResult{}, apperrors.ErrInternal.WithCause(err)
	}

	user := fmt.Sprintf(reasonerUserPrompt,
		event.WorkflowID, event.WorkflowType, event.ActorID, string(attrs),
		string(rulesJSON),
		event.WorkflowID,
	)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	raw, err := r.completer.Complete(ctx, reasonerSystemPrompt, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.ObserveReasoningCall("evaluate", "timeout", time.Since(start))
			metrics.IncReasoningFailure("timeout")
			return models.EvaluationResult{}, apperrors.ErrReasoningTimeout.
				WithCause(err).
				WithDetail("timeout", r.timeout.String()).
				WithDetail("workflow_id", event.WorkflowID)
		}
		metrics.ObserveReasoningCall("evaluate", "error", time.Since(start))
		metrics.IncReasoningFailure("call_failed")
		return models.EvaluationResult{}, apperrors.ErrReasoningMalformed.
			WithCause(err).
			WithDetail("workflow_id", event.WorkflowID)
	}
	metrics.ObserveReasoningCall("evaluate", "success", time.Since(start))

	var result models.EvaluationResult
	if err := parsePayload(raw, &result); err != nil {
		metrics.IncReasoningFailure("malformed")
		return models.EvaluationResult{}, err
	}

	if err := r.validate(event, rules, result); err != nil {
		metrics.IncReasoningFailure("invalid_shape")
		r.logger.WarnwCtx(ctx, "Compliance reasoning produced an invalid structure",
			"workflow_id", event.WorkflowID,
			"error", err,
		)
		return models.EvaluationResult{}, apperrors.ErrReasoningMalformed.
			WithCause(err).
			WithDetail("workflow_id", event.WorkflowID).
			WithDetail("raw_output", raw)
	}

	return result, nil
}

// validate checks the decoded evaluation against the rule set it was asked to
// cover. Verdicts for rules that were never supplied are rejected rather than
// silently trusted.
func (r *Reasoner) validate(event models.WorkflowEvent, rules []models.StructuredRule, result models.EvaluationResult) error {
	if result.WorkflowID != event.WorkflowID {
		return fmt.Errorf("workflow_id mismatch: want %q, got %q", event.WorkflowID, result.WorkflowID)
	}
	if result.Evaluations == nil {
		return errors.New("missing evaluations")
	}

	known := make(map[string]bool, len(rules))
	for _, rule := range rules {
		known[rule.RuleID] = true
	}

	for _, eval := range result.Evaluations {
		if eval.RuleID == "" {
			return errors.New("evaluation missing rule_id")
		}
		if !known[eval.RuleID] {
			return fmt.Errorf("evaluation references unknown rule %q", eval.RuleID)
		}
		if eval.Status != models.OutcomeCompliant && eval.Status != models.OutcomeNonCompliant {
			return fmt.Errorf("rule %q has invalid status %q", eval.RuleID, eval.Status)
		}
	}

	return nil
}

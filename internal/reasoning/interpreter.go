package reasoning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"verdict/internal/logger"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/metrics"
	"verdict/pkg/models"
)

const interpreterSystemPrompt = `You are a senior compliance analyst with expertise in insurance regulations. Your task is to take a rule text and break it down into its logical components: applicability conditions, obligations, and exceptions. You must be precise and deterministic. Do not invent rules or modify the intent.`

const interpreterUserPrompt = `Interpret the following compliance rule:
Rule ID: %s
Category: %s
Severity: %s
Rule Text: %s

Extract:
1. Applicability Conditions: Under what circumstances does this rule apply?
2. Obligations: What MUST be done or NOT be done?
3. Exceptions: Are there any cases where this rule does not apply?

Output MUST be a valid JSON matching this structure:
{
    "rule_id": "%s",
    "version": "%s",
    "applicability_conditions": ["condition1", "condition2"],
    "obligations": ["obligation1", "obligation2"],
    "exceptions": ["exception1", "exception2"],
    "severity": "%s"
}`

// interpretedRule is the wire shape the model is asked to produce for one rule.
type interpretedRule struct {
	RuleID                  string   `json:"rule_id"`
	Version                 string   `json:"version"`
	ApplicabilityConditions []string `json:"applicability_conditions"`
	Obligations             []string `json:"obligations"`
	Exceptions              []string `json:"exceptions"`
	Severity                string   `json:"severity"`
}

// Interpreter decomposes a free-text compliance rule into its structured,
// machine-evaluable form through one bounded call to the reasoning model.
type Interpreter struct {
	completer Completer
	timeout   time.Duration
	logger    logger.Logger
}

func NewInterpreter(completer Completer, timeout time.Duration, log logger.Logger) *Interpreter {
	return &Interpreter{
		completer: completer,
		timeout:   timeout,
		logger:    log,
	}
}

// Interpret produces the StructuredRule for one ComplianceRule revision. It
// performs no persistence; the caller decides what to do with the result.
func (i *Interpreter) Interpret(ctx context.Context, rule models.ComplianceRule) (models.StructuredRule, error) {
	user := fmt.Sprintf(interpreterUserPrompt,
		rule.RuleID, rule.Category, rule.Severity, rule.RuleText,
		rule.RuleID, rule.Version, rule.Severity,
	)

	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	raw, err := i.completer.Complete(ctx, interpreterSystemPrompt, user)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.ObserveReasoningCall("interpret", "timeout", time.Since(start))
			metrics.IncInterpretationFailure("timeout")
			return models.StructuredRule{}, apperrors.ErrInterpretationTimeout.
				WithCause(err).
				WithDetail("timeout", i.timeout.String()).
				WithDetail("rule_id", rule.RuleID)
		}
		metrics.ObserveReasoningCall("interpret", "error", time.Since(start))
		metrics.IncInterpretationFailure("call_failed")
		return models.StructuredRule{}, apperrors.ErrInterpretationFailed.
			WithCause(err).
			WithDetail("rule_id", rule.RuleID)
	}
	metrics.ObserveReasoningCall("interpret", "success", time.Since(start))

	var out interpretedRule
	if err := parsePayload(raw, &out); err != nil {
		metrics.IncInterpretationFailure("malformed")
		return models.StructuredRule{}, err
	}

	if err := i.validate(rule, out); err != nil {
		metrics.IncInterpretationFailure("invalid_shape")
		i.logger.WarnwCtx(ctx, "Rule interpretation produced an invalid structure",
			"rule_id", rule.RuleID,
			"version", rule.Version,
			"error", err,
		)
		return models.StructuredRule{}, apperrors.ErrInterpretationFailed.
			WithCause(err).
			WithDetail("rule_id", rule.RuleID).
			WithDetail("raw_output", raw)
	}

	return models.StructuredRule{
		RuleID:                  rule.RuleID,
		Version:                 rule.Version,
		ApplicabilityConditions: out.ApplicabilityConditions,
		Obligations:             out.Obligations,
		Exceptions:              out.Exceptions,
		Severity:                rule.Severity,
		RawModelOutput:          raw,
	}, nil
}

// validate checks the decoded payload against the requested shape. The model
// must echo the rule identity back unchanged and produce every list field.
func (i *Interpreter) validate(rule models.ComplianceRule, out interpretedRule) error {
	if out.RuleID != rule.RuleID {
		return fmt.Errorf("rule_id mismatch: want %q, got %q", rule.RuleID, out.RuleID)
	}
	if out.Version != rule.Version {
		return fmt.Errorf("version mismatch: want %q, got %q", rule.Version, out.Version)
	}
	if out.ApplicabilityConditions == nil {
		return errors.New("missing applicability_conditions")
	}
	if out.Obligations == nil {
		return errors.New("missing obligations")
	}
	if out.Exceptions == nil {
		return errors.New("missing exceptions")
	}
	if !models.RuleSeverity(out.Severity).Valid() {
		return fmt.Errorf("unknown severity %q", out.Severity)
	}
	return nil
}

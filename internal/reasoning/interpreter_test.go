package reasoning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdict/internal/logger"
	apperrors "verdict/pkg/errors"
	"verdict/pkg/models"
)

type fakeCompleter struct {
	response string
	err      error
	delay    time.Duration

	lastSystem string
	lastUser   string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.lastSystem = system
	f.lastUser = user

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testRule() models.ComplianceRule {
	return models.ComplianceRule{
		ID:       "0b6a5c80-1111-4222-8333-444455556666",
		RuleID:   "PRIV-001",
		Category: models.CategoryPrivacy,
		RuleText: "Customer PII must not be accessed without an approved data access request.",
		Severity: models.SeverityHigh,
		Version:  "1",
		Status:   models.RuleStatusActive,
	}
}

func TestInterpreterInterpret(t *testing.T) {
	completer := &fakeCompleter{
		response: "```json\n" + `{
			"rule_id": "PRIV-001",
			"version": "1",
			"applicability_conditions": ["event involves customer PII"],
			"obligations": ["an approved data access request must exist"],
			"exceptions": ["emergency access by incident responders"],
			"severity": "HIGH"
		}` + "\n```",
	}
	interp := NewInterpreter(completer, time.Second, logger.NopLogger())

	structured, err := interp.Interpret(context.Background(), testRule())
	require.NoError(t, err)

	assert.Equal(t, "PRIV-001", structured.RuleID)
	assert.Equal(t, "1", structured.Version)
	assert.Equal(t, []string{"event involves customer PII"}, structured.ApplicabilityConditions)
	assert.Equal(t, []string{"an approved data access request must exist"}, structured.Obligations)
	assert.Equal(t, []string{"emergency access by incident responders"}, structured.Exceptions)
	assert.Equal(t, models.SeverityHigh, structured.Severity)
	assert.Equal(t, completer.response, structured.RawModelOutput)

	assert.Contains(t, completer.lastUser, "PRIV-001")
	assert.Contains(t, completer.lastUser, "Customer PII must not be accessed")
}

func TestInterpreterTimeout(t *testing.T) {
	completer := &fakeCompleter{delay: 200 * time.Millisecond}
	interp := NewInterpreter(completer, 10*time.Millisecond, logger.NopLogger())

	_, err := interp.Interpret(context.Background(), testRule())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInterpretationTimeout))
}

func TestInterpreterCallFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	interp := NewInterpreter(completer, time.Second, logger.NopLogger())

	_, err := interp.Interpret(context.Background(), testRule())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInterpretationFailed))
}

func TestInterpreterMalformedOutput(t *testing.T) {
	completer := &fakeCompleter{response: "the rule seems fine to me"}
	interp := NewInterpreter(completer, time.Second, logger.NopLogger())

	_, err := interp.Interpret(context.Background(), testRule())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrMalformedOutput))
}

func TestInterpreterInvalidShape(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{
			name: "rule_id mismatch",
			response: `{"rule_id": "OTHER-999", "version": "1",
				"applicability_conditions": [], "obligations": [], "exceptions": [], "severity": "HIGH"}`,
		},
		{
			name: "version mismatch",
			response: `{"rule_id": "PRIV-001", "version": "2",
				"applicability_conditions": [], "obligations": [], "exceptions": [], "severity": "HIGH"}`,
		},
		{
			name: "missing obligations",
			response: `{"rule_id": "PRIV-001", "version": "1",
				"applicability_conditions": [], "exceptions": [], "severity": "HIGH"}`,
		},
		{
			name: "unknown severity",
			response: `{"rule_id": "PRIV-001", "version": "1",
				"applicability_conditions": [], "obligations": [], "exceptions": [], "severity": "CATASTROPHIC"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{response: tt.response}
			interp := NewInterpreter(completer, time.Second, logger.NopLogger())

			_, err := interp.Interpret(context.Background(), testRule())
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrInterpretationFailed))
		})
	}
}

func TestInterpreterEmptyListsAreValid(t *testing.T) {
	completer := &fakeCompleter{
		response: `{"rule_id": "PRIV-001", "version": "1",
			"applicability_conditions": [], "obligations": [], "exceptions": [], "severity": "HIGH"}`,
	}
	interp := NewInterpreter(completer, time.Second, logger.NopLogger())

	structured, err := interp.Interpret(context.Background(), testRule())
	require.NoError(t, err)
	assert.Empty(t, structured.Obligations)
	assert.NotNil(t, structured.Obligations)
}

package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "verdict/pkg/errors"
)

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "bare JSON",
			raw:      `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "json fenced block",
			raw:      "Here is the result:\n```json\n{\"a\": 1}\n```\nDone.",
			expected: `{"a": 1}`,
		},
		{
			name:     "generic fenced block",
			raw:      "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "json fence preferred over generic",
			raw:      "```\nnot json\n```\n```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "surrounding whitespace trimmed",
			raw:      "  \n{\"a\": 1}\n  ",
			expected: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractPayload(tt.raw))
		})
	}
}

func TestParsePayload(t *testing.T) {
	t.Run("decodes fenced object", func(t *testing.T) {
		var out struct {
			A int `json:"a"`
		}
		err := parsePayload("```json\n{\"a\": 7}\n```", &out)
		require.NoError(t, err)
		assert.Equal(t, 7, out.A)
	})

	t.Run("malformed payload carries raw text", func(t *testing.T) {
		var out map[string]interface{}
		err := parsePayload("I could not produce JSON, sorry.", &out)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrMalformedOutput))

		var appErr *apperrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "I could not produce JSON, sorry.", appErr.Details["raw_output"])
	})

	t.Run("unterminated fence falls back to full text", func(t *testing.T) {
		var out struct {
			A int `json:"a"`
		}
		err := parsePayload("```json\n{\"a\": 1}", &out)
		require.Error(t, err)
		assert.True(t, apperrors.Is(err, apperrors.ErrMalformedOutput))
	})
}

package reasoning

import (
	"encoding/json"
	"strings"

	apperrors "verdict/pkg/errors"
)

// extractPayload pulls the JSON payload out of free-form model output. The
// model is asked for bare JSON but frequently wraps it in a markdown fence, so
// the first ```json block wins, then the first generic ``` block, then the
// whole text.
func extractPayload(raw string) string {
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		rest := raw[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(raw, "```"); idx >= 0 {
		rest := raw[idx+len("```"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return strings.TrimSpace(raw)
}

// parsePayload extracts and decodes the JSON payload from raw model output
// into v. Model output is untrusted; a decode failure is reported as
// malformed output with the offending text attached for forensics.
func parsePayload(raw string, v interface{}) error {
	payload := extractPayload(raw)

	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return apperrors.ErrMalformedOutput.
			WithCause(err).
			WithDetail("raw_output", raw)
	}

	return nil
}

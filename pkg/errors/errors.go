package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = NewError("NOT_FOUND", "resource not found", http.StatusNotFound)
	ErrValidation   = NewError("VALIDATION_ERROR", "validation failed", http.StatusBadRequest)
	ErrInternal     = NewError("INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
	ErrConflict     = NewError("CONFLICT", "resource conflict", http.StatusConflict)
	ErrUnauthorized = NewError("UNAUTHORIZED", "unauthorized", http.StatusUnauthorized)
	ErrForbidden    = NewError("FORBIDDEN", "forbidden", http.StatusForbidden)

	// Reasoning pipeline taxonomy. Timeouts and malformed output drive
	// different recovery paths (audit degradation vs. rule-write rollback),
	// so they carry distinct codes.
	ErrMalformedOutput        = NewError("MALFORMED_OUTPUT", "reasoning output is not valid JSON", http.StatusBadGateway)
	ErrInterpretationTimeout  = NewError("INTERPRETATION_TIMEOUT", "rule interpretation exceeded its time budget", http.StatusGatewayTimeout)
	ErrReasoningTimeout       = NewError("REASONING_TIMEOUT", "compliance reasoning exceeded its time budget", http.StatusGatewayTimeout)
	ErrInterpretationFailed   = NewError("INTERPRETATION_FAILED", "rule interpretation produced an invalid structure", http.StatusUnprocessableEntity)
	ErrReasoningMalformed     = NewError("REASONING_MALFORMED", "compliance reasoning produced an invalid structure", http.StatusBadGateway)
	ErrRuleMutationRolledBack = NewError("RULE_MUTATION_ROLLED_BACK", "rule write undone after failed interpretation", http.StatusUnprocessableEntity)
	ErrImmutabilityViolation  = NewError("IMMUTABILITY_VIOLATION", "attempted update or delete of an append-only record", http.StatusConflict)
)

type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]interface{}
	Cause   error
}

func NewError(code, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Status:  status,
		Details: make(map[string]interface{}),
	}
}

func (e *Error) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		if detailMsg, ok := e.Details["message"].(string); ok && detailMsg != "" {
			msg = detailMsg
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithCause(cause error) *Error {
	err := *e
	err.Cause = cause
	return &err
}

func (e *Error) WithDetail(key string, value interface{}) *Error {
	err := *e
	err.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		err.Details[k] = v
	}
	err.Details[key] = value
	return &err
}

func Wrap(err error, appErr *Error) *Error {
	if err == nil {
		return nil
	}
	return appErr.WithCause(err)
}

// Is reports whether err carries the given code, regardless of attached
// details or cause.
func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func IsNotFound(err error) bool {
	return Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	return Is(err, ErrValidation)
}

// IsReasoningFailure reports whether err is any failure of the external
// reasoning step, the class that degrades an audit to REQUIRES_REVIEW.
func IsReasoningFailure(err error) bool {
	return Is(err, ErrReasoningTimeout) ||
		Is(err, ErrReasoningMalformed) ||
		Is(err, ErrMalformedOutput)
}

func ToHTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

func ToErrorResponse(err error) map[string]interface{} {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithCause(err)
	}

	response := map[string]interface{}{
		"error":      appErr.Message,
		"error_code": appErr.Code,
	}

	if len(appErr.Details) > 0 {
		response["details"] = appErr.Details
	}

	return response
}

// Package apperror provides structured errors for the synchronisation engine.
// Every failure surfaced to callers is an AppError carrying a machine-readable
// Code and the Stage at which it happened.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal        = "INTERNAL_ERROR"
	CodeTransport       = "TRANSPORT_ERROR"
	CodeUnexpectedReply = "UNEXPECTED_REPLY"
	CodeConvergence     = "CONVERGENCE_ERROR"

	// Input errors (400)
	CodeValidation    = "VALIDATION_ERROR"
	CodeEffectiveDate = "EFFECTIVE_DATE_INVALID"

	// Rule violations (422)
	CodeUnitCode          = "UNIT_CODE_INVALID"
	CodeUnknownLevel      = "UNKNOWN_LEVEL"
	CodeStructural        = "STRUCTURAL_VIOLATION"
	CodeOrdering          = "ORDERING_VIOLATION"
	CodeAddressResolution = "ADDRESS_RESOLUTION_ERROR"

	// Authorization errors (401, 403)
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	// Lookup errors (404, 409)
	CodeNotFound  = "NOT_FOUND"
	CodeNonUnique = "NON_UNIQUE"
)

// Stage tells callers whether anything may already have reached the registry.
type Stage string

const (
	// StagePreSubmission: nothing was sent.
	StagePreSubmission Stage = "pre_submission"
	// StageSubmission: sending failed midway, the change may or may not be applied.
	StageSubmission Stage = "submission"
	// StagePostSubmission: the change was sent; failures are reported, never rolled back.
	StagePostSubmission Stage = "post_submission"
)

// AppError is the standard error type of the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Stage is empty until the orchestrator stamps it
	Stage Stage `json:"stage,omitempty"`

	// Details contains additional context (violations, mismatches, identifiers)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// AtStage sets the stage unless one was already recorded closer to the failure.
func (e *AppError) AtStage(stage Stage) *AppError {
	if e.Stage == "" {
		e.Stage = stage
	}
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewEffectiveDate reports an effective window the registry cannot accept.
func NewEffectiveDate(message, date string) *AppError {
	return &AppError{
		Code:       CodeEffectiveDate,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"date": date},
	}
}

// NewUnitCode carries every violation found for a unit code.
func NewUnitCode(code string, violations []string) *AppError {
	return &AppError{
		Code:       CodeUnitCode,
		Message:    fmt.Sprintf("unit code %q is invalid: %s", code, strings.Join(violations, ", ")),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"code": code, "violations": violations},
	}
}

// NewUnknownLevel is returned when a level is not in the configured hierarchy.
func NewUnknownLevel(level string) *AppError {
	return &AppError{
		Code:       CodeUnknownLevel,
		Message:    fmt.Sprintf("level %q is not part of the configured hierarchy", level),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"level": level},
	}
}

// NewStructural is returned when a unit would not sit strictly below its parent.
func NewStructural(unitLevel, parentLevel string) *AppError {
	return &AppError{
		Code:       CodeStructural,
		Message:    fmt.Sprintf("level %q cannot be placed under level %q", unitLevel, parentLevel),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"unit_level": unitLevel, "parent_level": parentLevel},
	}
}

// NewOrdering is returned when a change depends on data the registry does not hold yet.
func NewOrdering(message string) *AppError {
	return &AppError{
		Code:       CodeOrdering,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewAddressResolution is returned when a structured address cannot be turned into a label.
func NewAddressResolution(addressID, reason string) *AppError {
	return &AppError{
		Code:       CodeAddressResolution,
		Message:    fmt.Sprintf("address %s: %s", addressID, reason),
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"address": addressID},
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewNonUnique is returned when a lookup expected one record and got several.
func NewNonUnique(entity string, id any, count int) *AppError {
	return &AppError{
		Code:       CodeNonUnique,
		Message:    fmt.Sprintf("%s is not unique (%d matches)", entity, count),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "id": id, "count": count},
	}
}

// NewConvergence reports registry state that never matched the expectation.
func NewConvergence(unitUUID string, attempts int, mismatches any) *AppError {
	return &AppError{
		Code:       CodeConvergence,
		Message:    fmt.Sprintf("registry state for %s did not converge after %d attempts", unitUUID, attempts),
		Stage:      StagePostSubmission,
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"unit_uuid": unitUUID, "attempts": attempts, "mismatches": mismatches},
	}
}

// NewTransport wraps a failure talking to an external system.
func NewTransport(target string, err error) *AppError {
	return &AppError{
		Code:       CodeTransport,
		Message:    fmt.Sprintf("%s unavailable", target),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"target": target},
		Err:        err,
	}
}

// NewUnexpectedReply is returned when the registry answers a one-way message.
func NewUnexpectedReply(body string) *AppError {
	return &AppError{
		Code:       CodeUnexpectedReply,
		Message:    "registry replied to a change message",
		Stage:      StageSubmission,
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]any{"reply": body},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbidden creates an authorization error (403)
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// StageOf returns the recorded stage, defaulting to pre-submission.
func StageOf(err error) Stage {
	if appErr, ok := AsAppError(err); ok && appErr.Stage != "" {
		return appErr.Stage
	}
	return StagePreSubmission
}

// Stamp converts err to an AppError and records the stage on it.
func Stamp(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = NewInternal(err)
	}
	return appErr.AtStage(stage)
}

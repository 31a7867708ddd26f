// Package errors provides standardized error handling for the scoring
// service and the offline trainer.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidRequestBody  ErrorCode = "INVALID_REQUEST_BODY"
	ErrCodeModelNotLoaded      ErrorCode = "MODEL_NOT_LOADED"
	ErrCodePredictionFailed    ErrorCode = "PREDICTION_FAILED"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"

	ErrCodeArtifactLoadFailed      ErrorCode = "ARTIFACT_LOAD_FAILED"
	ErrCodeArtifactVersionMismatch ErrorCode = "ARTIFACT_VERSION_MISMATCH"
	ErrCodeFeatureSchemaMismatch   ErrorCode = "FEATURE_SCHEMA_MISMATCH"

	ErrCodeDatasetInvalid   ErrorCode = "DATASET_INVALID"
	ErrCodeTrainingFailed   ErrorCode = "TRAINING_FAILED"
	ErrCodeAuditWriteFailed ErrorCode = "AUDIT_WRITE_FAILED"
)

// FieldError describes a single offending request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Fields    []FieldError           `json:"errors,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

func newError(code ErrorCode, message string, cause error) *StandardError {
	se := &StandardError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
	if cause != nil {
		se.Details = cause.Error()
	}
	return se
}

// NewValidationError reports field-level request validation failures.
func NewValidationError(fields []FieldError) *StandardError {
	se := newError(ErrCodeValidationFailed, "Applicant record failed validation", nil)
	se.Fields = fields
	se.Details = fmt.Sprintf("%d field error(s)", len(fields))
	return se
}

// NewInvalidRequestBodyError is returned when the body is not a JSON object.
func NewInvalidRequestBodyError(err error) *StandardError {
	return newError(ErrCodeInvalidRequestBody, "Request body must be a JSON object", err)
}

// NewModelNotLoadedError is returned while the service has no artifact.
func NewModelNotLoadedError() *StandardError {
	se := newError(ErrCodeModelNotLoaded, "Model artifact not loaded", nil)
	se.Retryable = true
	return se
}

// NewPredictionFailedError wraps an unexpected failure inside the pipeline or model.
func NewPredictionFailedError(err error) *StandardError {
	return newError(ErrCodePredictionFailed, "Prediction could not be computed", err)
}

// NewArtifactLoadFailedError covers missing or corrupt artifact files.
func NewArtifactLoadFailedError(path string, err error) *StandardError {
	se := newError(ErrCodeArtifactLoadFailed, "Model artifact could not be loaded", err)
	se.Metadata = map[string]interface{}{"path": path}
	return se
}

// NewArtifactVersionMismatchError reports an artifact built by another pipeline version.
func NewArtifactVersionMismatchError(kind, want, got string) *StandardError {
	se := newError(ErrCodeArtifactVersionMismatch, "Model artifact version mismatch", nil)
	se.Details = fmt.Sprintf("%s: want %q, got %q", kind, want, got)
	return se
}

// NewFeatureSchemaMismatchError reports a feature layout that differs from the compiled one.
func NewFeatureSchemaMismatchError(details string) *StandardError {
	se := newError(ErrCodeFeatureSchemaMismatch, "Feature vector schema mismatch", nil)
	se.Details = details
	return se
}

// NewDatasetInvalidError reports an unusable training dataset.
func NewDatasetInvalidError(details string) *StandardError {
	se := newError(ErrCodeDatasetInvalid, "Training dataset is invalid", nil)
	se.Details = details
	return se
}

// NewTrainingFailedError wraps failures of the offline training run.
func NewTrainingFailedError(err error) *StandardError {
	return newError(ErrCodeTrainingFailed, "Training run failed", err)
}

// NewAuditWriteFailedError wraps a failed audit sink write.
func NewAuditWriteFailedError(sink string, err error) *StandardError {
	se := newError(ErrCodeAuditWriteFailed, fmt.Sprintf("Audit sink '%s' write failed", sink), err)
	se.Retryable = true
	return se
}

// Normalize converts any error into a StandardError. Unknown errors become
// INTERNAL_ERROR so callers never leak raw error text to clients.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var se *StandardError
	if stderrors.As(err, &se) {
		return se
	}
	return newError(ErrCodeInternal, "Unexpected error", err)
}

// HasCode reports whether err is a StandardError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var se *StandardError
	return stderrors.As(err, &se) && se.Code == code
}

// HTTPStatus maps an error code onto the status returned by the serving endpoint.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidRequestBody:
		return http.StatusBadRequest
	case ErrCodeModelNotLoaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the code describes a caller mistake.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatus(code)
	return status >= 400 && status < 500
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "REQUEST"):
		return "VALIDATION"
	case strings.Contains(codeStr, "ARTIFACT") || strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "MODEL"):
		return "ARTIFACT"
	case strings.Contains(codeStr, "DATASET") || strings.Contains(codeStr, "TRAINING"):
		return "TRAINING"
	case strings.Contains(codeStr, "AUDIT"):
		return "AUDIT"
	case strings.Contains(codeStr, "PREDICTION"):
		return "PREDICTION"
	default:
		return "OTHER"
	}
}

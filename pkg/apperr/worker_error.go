package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Auth errors
	CodeUnauthorized = "UNAUTHORIZED"
	CodeInvalidToken = "INVALID_TOKEN"

	// Validation errors
	CodeBadRequest   = "BAD_REQUEST"
	CodeMissingField = "MISSING_FIELD"
	CodeInvalidInput = "INVALID_INPUT"

	// Resource errors
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"

	// Internal errors
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"

	// Engine error kinds (spec §7)
	CodeTransientGateway  = "TRANSIENT_GATEWAY"
	CodeFatalGateway      = "FATAL_GATEWAY"
	CodeStorage           = "STORAGE"
	CodeClassifier        = "CLASSIFIER"
	CodeFeatureExtraction = "FEATURE_EXTRACTION"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Auth errors
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func InvalidToken(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidToken,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// Validation errors
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func InvalidInput(field, reason string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("invalid input for '%s': %s", field, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

// Resource errors
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func AlreadyExists(resource string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: fmt.Sprintf("%s already exists", resource),
		Status:  http.StatusConflict,
	}
}

// Internal errors
func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ConfigError(message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// Engine error kinds (spec §7). TransientGateway and per-record storage/
// classifier/feature-extraction errors are skip-and-continue inside a job;
// FatalGateway aborts the whole batch and releases the permit.
func TransientGateway(op string, err error) *AppError {
	return &AppError{
		Code:    CodeTransientGateway,
		Message: fmt.Sprintf("transient gateway error: %s", op),
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func FatalGateway(op string, err error) *AppError {
	return &AppError{
		Code:    CodeFatalGateway,
		Message: fmt.Sprintf("fatal gateway error: %s", op),
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

func Storage(op string, err error) *AppError {
	return &AppError{
		Code:    CodeStorage,
		Message: fmt.Sprintf("storage error: %s", op),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func Classifier(err error) *AppError {
	return &AppError{
		Code:    CodeClassifier,
		Message: "classifier error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func FeatureExtraction(err error) *AppError {
	return &AppError{
		Code:    CodeFeatureExtraction,
		Message: "feature extraction error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// IsFatalGateway reports whether err is (or wraps) a fatal-gateway AppError.
func IsFatalGateway(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeFatalGateway
	}
	return false
}

// AsAppError returns err as an *AppError, wrapping it as an internal error
// if it isn't one already.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

// IsAppError reports whether err is (or wraps) an *AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetHTTPStatus returns err's HTTP status, or 500 if err isn't an AppError.
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

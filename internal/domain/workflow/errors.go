package workflow

import (
	"errors"
	"fmt"
)

// ErrorCode identifies well-known error categories used across the workflow
// engine.
type ErrorCode string

const (
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicate  ErrorCode = "DUPLICATE_ID"
	ErrCodeDependency ErrorCode = "DEPENDENCY_ERROR"
	ErrCodeType       ErrorCode = "INVALID_TYPE"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeMissing    ErrorCode = "MISSING_REQUIRED"
	ErrCodeExecution  ErrorCode = "EXECUTION_ERROR"
	ErrCodeProvider   ErrorCode = "PROVIDER_ERROR"
	ErrCodeJobFailed  ErrorCode = "JOB_FAILED"
	ErrCodeTimeout    ErrorCode = "TIMEOUT"
	ErrCodeCancelled  ErrorCode = "CANCELLED"
	ErrCodeInternal   ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a typed error enriched with contextual data.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is comparisons against other DomainError values. Two
// errors match when their codes match and the target either carries no
// message or the same message.
func (e *DomainError) Is(target error) bool {
	var domainErr *DomainError
	if !errors.As(target, &domainErr) {
		return false
	}
	if e.Code != domainErr.Code {
		return false
	}
	return domainErr.Message == "" || e.Message == domainErr.Message
}

// WithContext clones the error with additional contextual metadata.
func (e *DomainError) WithContext(ctx map[string]interface{}) *DomainError {
	if e == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Context: merged,
	}
}

// NewError constructs a DomainError with the supplied code and message.
func NewError(code ErrorCode, message string, cause error, context map[string]interface{}) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or an
// empty code when there is none.
func CodeOf(err error) ErrorCode {
	var derr *DomainError
	if errors.As(err, &derr) {
		return derr.Code
	}
	return ""
}

// AsDomainError normalises arbitrary errors into a DomainError, falling back
// to the supplied code when err carries none.
func AsDomainError(err error, fallback ErrorCode) *DomainError {
	if err == nil {
		return nil
	}
	var derr *DomainError
	if errors.As(err, &derr) {
		return derr
	}
	return &DomainError{Code: fallback, Message: err.Error(), Cause: err}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &DomainError{Code: ErrCodeValidation}
	ErrTimeout    = &DomainError{Code: ErrCodeTimeout}
	ErrCancelled  = &DomainError{Code: ErrCodeCancelled}
	ErrJobFailed  = &DomainError{Code: ErrCodeJobFailed}
	ErrNotFound   = &DomainError{Code: ErrCodeNotFound}
)

// Helper constructors to simplify error creation throughout the domain.

func newValidationError(message string, context map[string]interface{}) *DomainError {
	return NewError(ErrCodeValidation, message, nil, context)
}

func newDuplicateError(identifier string) *DomainError {
	return NewError(ErrCodeDuplicate, "duplicate step identifier", nil, map[string]interface{}{
		"step_id": identifier,
	})
}

func newDependencyError(message string, context map[string]interface{}) *DomainError {
	return NewError(ErrCodeDependency, message, nil, context)
}

func newTypeError(expected string, actual string) *DomainError {
	return NewError(ErrCodeType, "invalid type", nil, map[string]interface{}{
		"expected": expected,
		"actual":   actual,
	})
}

func newMissingFieldError(field string) *DomainError {
	return NewError(ErrCodeMissing, "missing required field", nil, map[string]interface{}{
		"field": field,
	})
}

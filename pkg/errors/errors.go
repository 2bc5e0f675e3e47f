package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for classification of watchdog failures

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidConfig     ErrorType = "invalid_config"
	ErrorTypeUnknownTarget     ErrorType = "unknown_target"
	ErrorTypeDriverUnavailable ErrorType = "driver_unavailable"
	ErrorTypeRestartFailed     ErrorType = "restart_failed"
	ErrorTypeTimeout           ErrorType = "timeout"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeConflict          ErrorType = "conflict"
	ErrorTypeUnsupported       ErrorType = "unsupported"
	ErrorTypeIO                ErrorType = "io"
	ErrorTypeInternal          ErrorType = "internal"
	ErrorTypeCancelled         ErrorType = "cancelled"
)

// DomainError represents a structured error with type and context
type DomainError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	if other, ok := target.(*DomainError); ok {
		return e.Type == other.Type
	}
	return false
}

// WithContext adds context information to the error
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewDomainError(errorType ErrorType, message string, cause error) *DomainError {
	return &DomainError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Configuration errors, surfaced synchronously to the proposer
func NewInvalidConfigError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInvalidConfig, message, cause)
}

func NewUnknownTargetError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeUnknownTarget, message, cause)
}

// Driver errors, recovered locally by the owning monitor
func NewDriverUnavailableError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeDriverUnavailable, message, cause)
}

func NewRestartFailedError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeRestartFailed, message, cause)
}

func NewTimeoutError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeTimeout, message, cause)
}

// General errors
func NewValidationError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeValidation, message, cause)
}

func NewConflictError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeConflict, message, cause)
}

func NewUnsupportedError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeUnsupported, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeIO, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeInternal, message, cause)
}

func NewCancelledError(message string, cause error) *DomainError {
	return NewDomainError(ErrorTypeCancelled, message, cause)
}

// TypeOf returns the type of the outermost DomainError in the chain, or "" if there is none
func TypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

func isType(err error, errorType ErrorType) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Type == errorType
}

func IsInvalidConfigError(err error) bool {
	return isType(err, ErrorTypeInvalidConfig)
}

func IsUnknownTargetError(err error) bool {
	return isType(err, ErrorTypeUnknownTarget)
}

func IsDriverUnavailableError(err error) bool {
	return isType(err, ErrorTypeDriverUnavailable)
}

func IsRestartFailedError(err error) bool {
	return isType(err, ErrorTypeRestartFailed)
}

func IsTimeoutError(err error) bool {
	return isType(err, ErrorTypeTimeout)
}

func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

func IsConflictError(err error) bool {
	return isType(err, ErrorTypeConflict)
}

func IsUnsupportedError(err error) bool {
	return isType(err, ErrorTypeUnsupported)
}

func IsIOError(err error) bool {
	return isType(err, ErrorTypeIO)
}

func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

func IsCancelledError(err error) bool {
	return isType(err, ErrorTypeCancelled)
}

// Error aggregation for bulk operations
type ErrorCollection struct {
	Errors []error
}

func (e *ErrorCollection) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	messages := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(e.Errors), strings.Join(messages, "; "))
}

// Unwrap exposes the collected errors to errors.Is / errors.As
func (e *ErrorCollection) Unwrap() []error {
	return e.Errors
}

func (e *ErrorCollection) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

func (e *ErrorCollection) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ErrorCollection) ToError() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func NewErrorCollection() *ErrorCollection {
	return &ErrorCollection{
		Errors: make([]error, 0),
	}
}

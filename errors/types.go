package errors

import (
	"fmt"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConnection represents connection-related errors
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeTimeout represents timeout errors
	ErrTypeTimeout ErrorType = "timeout"
	// ErrTypeUnavailable represents a missing or unconfigured dependency
	ErrTypeUnavailable ErrorType = "unavailable"
	// ErrTypeValidation represents validation errors
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeValueTooLarge represents values that exceed the configured size limit
	ErrTypeValueTooLarge ErrorType = "value_too_large"
	// ErrTypeCircuitOpen represents calls rejected by an open circuit breaker
	ErrTypeCircuitOpen ErrorType = "circuit_open"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
)

// CacheError represents a structured error raised by a cache tier.
// Producer errors are never wrapped in a CacheError: they cross the
// public boundary unchanged.
type CacheError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *CacheError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		contextParts := make([]string, 0, len(e.Context))
		for k, v := range e.Context {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *CacheError) WithContext(key string, value interface{}) *CacheError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// TimeoutError creates a new timeout error
func TimeoutError(operation string) *CacheError {
	return &CacheError{
		Type:    ErrTypeTimeout,
		Message: fmt.Sprintf("timeout during %s", operation),
	}
}

// UnavailableError creates a new unavailable error
func UnavailableError(dependency string) *CacheError {
	return &CacheError{
		Type:    ErrTypeUnavailable,
		Message: fmt.Sprintf("%s is not available", dependency),
	}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *CacheError {
	return &CacheError{
		Type:    ErrTypeValidation,
		Message: msg,
	}
}

// ValueTooLargeError creates a new value-too-large error
func ValueTooLargeError(key string, size, limit int) *CacheError {
	return &CacheError{
		Type:    ErrTypeValueTooLarge,
		Message: fmt.Sprintf("value for %q exceeds size limit", key),
		Context: map[string]interface{}{"size": size, "limit": limit},
	}
}

// CircuitOpenError creates a new circuit-open error
func CircuitOpenError(name string) *CacheError {
	return &CacheError{
		Type:    ErrTypeCircuitOpen,
		Message: fmt.Sprintf("circuit breaker %q is open", name),
	}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *CacheError {
	return &CacheError{
		Type:    ErrTypeInternal,
		Message: msg,
		Cause:   cause,
	}
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}

	cacheErr, ok := err.(*CacheError)
	if !ok {
		return false
	}

	return cacheErr.Type == errType
}

// GetType returns the error type if it's a CacheError, otherwise returns ErrTypeInternal
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	cacheErr, ok := err.(*CacheError)
	if !ok {
		return ErrTypeInternal
	}

	return cacheErr.Type
}

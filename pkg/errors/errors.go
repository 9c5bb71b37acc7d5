// Package errors provides structured error types for trectl.
package errors

import (
	"fmt"
)

// ErrorCode identifies specific error conditions
type ErrorCode string

const (
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeBackend             ErrorCode = "BACKEND_ERROR"
	ErrCodeParse               ErrorCode = "PARSE_ERROR"
	ErrCodeMalformedDefinition ErrorCode = "MALFORMED_DEFINITION"
	ErrCodeUnresolvedReference ErrorCode = "UNRESOLVED_REFERENCE"
	ErrCodePatchConflict       ErrorCode = "PATCH_CONFLICT"
	ErrCodeDispatch            ErrorCode = "DISPATCH_ERROR"
)

// Error is the base error type for trectl
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Wrap creates a new error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetails adds details to an error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// ValidationError creates a validation error
func ValidationError(message string, details map[string]interface{}) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: message,
		Details: details,
	}
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, name string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %q not found", resourceType, name),
		Details: map[string]interface{}{
			"resource_type": resourceType,
			"name":          name,
		},
	}
}

// ParseError creates a parse error
func ParseError(filePath string, err error) *Error {
	return &Error{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("failed to parse %s", filePath),
		Cause:   err,
		Details: map[string]interface{}{
			"file": filePath,
		},
	}
}

// MalformedDefinitionError creates an error for a pipeline definition
// that cannot produce a plan (unknown action, missing or duplicated
// self step marker).
func MalformedDefinitionError(action, message string) *Error {
	return &Error{
		Code:    ErrCodeMalformedDefinition,
		Message: message,
		Details: map[string]interface{}{
			"action": action,
		},
	}
}

// UnresolvedReferenceError creates an error for an expression path
// absent on the trigger resource.
func UnresolvedReferenceError(path string) *Error {
	return &Error{
		Code:    ErrCodeUnresolvedReference,
		Message: fmt.Sprintf("expression references %q, which is not present on the trigger resource", path),
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// PatchConflictError creates an error for an array patch whose value
// does not carry the declared match field.
func PatchConflictError(property, matchField string) *Error {
	return &Error{
		Code:    ErrCodePatchConflict,
		Message: fmt.Sprintf("patch value for property %q is missing match field %q", property, matchField),
		Details: map[string]interface{}{
			"property":    property,
			"match_field": matchField,
		},
	}
}

// DispatchError creates an error for a failed action invocation
// against the external dispatcher.
func DispatchError(stepID string, err error) *Error {
	return &Error{
		Code:    ErrCodeDispatch,
		Message: fmt.Sprintf("dispatch of step %q failed", stepID),
		Cause:   err,
		Details: map[string]interface{}{
			"step_id": stepID,
		},
	}
}

// ConflictError creates an error for an optimistic concurrency
// violation on a target resource. Callers retry with a fresh plan.
func ConflictError(target string) *Error {
	return &Error{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("concurrent modification of %s detected", target),
		Details: map[string]interface{}{
			"target": target,
		},
	}
}

// BackendError creates a backend error
func BackendError(backend string, operation string, err error) *Error {
	return &Error{
		Code:    ErrCodeBackend,
		Message: fmt.Sprintf("backend %s failed during %s", backend, operation),
		Cause:   err,
		Details: map[string]interface{}{
			"backend":   backend,
			"operation": operation,
		},
	}
}

// Is checks if the error matches the given code
func Is(err error, code ErrorCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

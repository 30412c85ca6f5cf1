package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeInvalid             ErrorCode = "INVALID"
	ErrCodeInvalidDeadline     ErrorCode = "INVALID_DEADLINE"
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeInconsistentCascade ErrorCode = "INCONSISTENT_CASCADE"
	ErrCodeInternal            ErrorCode = "INTERNAL"
)

// DenyReason explains why the authorization policy refused an action.
type DenyReason string

const (
	ReasonNotCreator  DenyReason = "NotCreator"
	ReasonNotAssignee DenyReason = "NotAssignee"
	ReasonNotAdmin    DenyReason = "NotAdmin"
	ReasonNotFound    DenyReason = "NotFound"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	// Action and Reason are only set on policy denials.
	Action string
	Reason DenyReason
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Forbidden builds a policy denial for the given action.
func Forbidden(action string, reason DenyReason) *Error {
	return &Error{
		Code:    ErrCodeForbidden,
		Message: fmt.Sprintf("not authorized to %s (%s)", action, reason),
		Action:  action,
		Reason:  reason,
	}
}

// InconsistentCascade reports a project delete whose dependent task purge did not complete.
func InconsistentCascade(projectID string, err error) *Error {
	return WrapError(ErrCodeInconsistentCascade, fmt.Sprintf("cascade for project %s did not complete", projectID), err)
}

// Invalid builds a validation error with a caller-facing message.
func Invalid(message string) *Error {
	return NewError(ErrCodeInvalid, message)
}

// Common domain errors.
var (
	ErrUserNotFound      = NewError(ErrCodeNotFound, "user not found")
	ErrProjectNotFound   = NewError(ErrCodeNotFound, "project not found")
	ErrTaskNotFound      = NewError(ErrCodeNotFound, "task not found")
	ErrSessionNotFound   = NewError(ErrCodeNotFound, "session not found")
	ErrUnauthorized      = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrBadCredentials    = NewError(ErrCodeUnauthorized, "invalid email or password")
	ErrInvalidPayload    = NewError(ErrCodeInvalid, "invalid payload")
	ErrInvalidStatus     = NewError(ErrCodeInvalid, "invalid task status")
	ErrInvalidRole       = NewError(ErrCodeInvalid, "invalid role")
	ErrInvalidTransition = NewError(ErrCodeInvalid, "invalid status transition")
	ErrInvalidDeadline   = NewError(ErrCodeInvalidDeadline, "deadline must not be in the past")
	ErrDuplicateUser     = NewError(ErrCodeConflict, "user already exists")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// ReasonOf returns the deny reason carried by a policy error, if any.
func ReasonOf(err error) DenyReason {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Reason
	}
	return ""
}

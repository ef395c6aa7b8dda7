package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Reminder and vitals failure taxonomy. None of these are fatal to the process.
const (
	// ErrPermissionDenied: exact-timer or notification permission is absent.
	ErrPermissionDenied ErrorCode = iota + 2000
	// ErrMalformedInput: unparseable date/time data on a domain entity.
	ErrMalformedInput
	// ErrEntityVanished: the entity is gone or no longer wants reminders.
	ErrEntityVanished
	// ErrTransientFetch: the repository call failed.
	ErrTransientFetch
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func PermissionDenied(what string) *AppError {
	return &AppError{
		Code:    ErrPermissionDenied,
		Message: fmt.Sprintf("%s permission denied", what),
	}
}

func MalformedInput(message string, err error) *AppError {
	return &AppError{
		Code:    ErrMalformedInput,
		Message: message,
		Err:     err,
	}
}

func EntityVanished(resource string, id int64) *AppError {
	return &AppError{
		Code:    ErrEntityVanished,
		Message: fmt.Sprintf("%s %d vanished", resource, id),
	}
}

func TransientFetch(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrTransientFetch,
		Message: fmt.Sprintf("failed to fetch %s", resource),
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return 0
}

// HasCode reports whether err's chain contains an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// As and Is forward to the standard library so callers need one import.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

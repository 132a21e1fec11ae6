package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a lenote error code.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound            ErrorCode = "NOT_FOUND"            // 404
	ErrConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION" // 409
	ErrPayloadTooLarge     ErrorCode = "PAYLOAD_TOO_LARGE"    // 413
	ErrConversion          ErrorCode = "CONVERSION_ERROR"     // 500
	ErrMigrationFailed     ErrorCode = "MIGRATION_FAILED"     // 500
	ErrCancelled           ErrorCode = "CANCELLED"            // 499
	ErrInternal            ErrorCode = "INTERNAL"             // 500
)

// Error represents a structured error with code, status, and details.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// cause is the underlying error, if any. Not rendered to clients.
	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing entity.
func NewNotFound(what, identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", what, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewConstraintViolation creates a 409 error for a rejected insert
// (duplicate primary key, dangling foreign key).
func NewConstraintViolation(err error) *Error {
	return &Error{
		Code:    ErrConstraintViolation,
		Status:  409,
		Message: err.Error(),
		cause:   err,
	}
}

// NewPayloadTooLarge creates a 413 error when an upload exceeds the configured limit.
// A negative actual means the size is unknown (the read was cut off).
func NewPayloadTooLarge(max, actual int64) *Error {
	if actual < 0 {
		return &Error{
			Code:    ErrPayloadTooLarge,
			Status:  413,
			Message: fmt.Sprintf("payload exceeds maximum size (max %d bytes)", max),
			Details: map[string]any{"max_bytes": max},
		}
	}
	return &Error{
		Code:    ErrPayloadTooLarge,
		Status:  413,
		Message: fmt.Sprintf("payload exceeds maximum size: %d bytes (max %d)", actual, max),
		Details: map[string]any{"max_bytes": max, "actual_bytes": actual},
	}
}

// NewConversion creates an error for a persisted integer that does not map
// to a known enum variant.
func NewConversion(kind string, value int64) *Error {
	return &Error{
		Code:    ErrConversion,
		Status:  500,
		Message: fmt.Sprintf("cannot convert value %d to %s", value, kind),
		Details: map[string]any{"kind": kind, "value": value},
	}
}

// NewMigrationFailed creates an error for a schema step whose version
// compare-and-swap did not match.
func NewMigrationFailed(version int, err error) *Error {
	msg := fmt.Sprintf("failed to evolve database to version %d", version)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &Error{
		Code:    ErrMigrationFailed,
		Status:  500,
		Message: msg,
		Details: map[string]any{"version": version},
		cause:   err,
	}
}

// NewCancelled creates an error for an operation aborted by its context.
func NewCancelled(op string) *Error {
	return &Error{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if err (or anything it wraps) is an Error with the given code.
func Is(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

package queue

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes queue errors.
type ErrorCode string

const (
	// ErrCodeInvalidInput indicates an enqueue request missing a required field.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeNotFound indicates the record does not exist for the tenant.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidTransition indicates the record's current status does
	// not allow the requested transition.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Error is a queue contract violation. Storage failures are not reported as
// Error; they are returned wrapped as-is.
type Error struct {
	Code    ErrorCode
	Message string

	// RecordID is the affected record, zero when not applicable.
	RecordID int64
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.RecordID != 0 {
		return fmt.Sprintf("%s: %s (id=%d)", e.Code, e.Message, e.RecordID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, id int64, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), RecordID: id}
}

func hasCode(err error, code ErrorCode) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == code
	}
	return false
}

// IsInvalidInput returns true if err is an enqueue validation error.
// Uses errors.As to handle wrapped errors.
func IsInvalidInput(err error) bool { return hasCode(err, ErrCodeInvalidInput) }

// IsNotFound returns true if err reports a missing record.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsInvalidTransition returns true if err reports a disallowed transition.
func IsInvalidTransition(err error) bool { return hasCode(err, ErrCodeInvalidTransition) }

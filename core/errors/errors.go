package errors

import "fmt"

type ErrorCode string

// Generic application codes.
const (
	ErrInternalServer     ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData ErrorCode = "INVALID_REQUEST_DATA"
	ErrAlreadyExists      ErrorCode = "ALREADY_EXISTS"
	ErrForbidden          ErrorCode = "FORBIDDEN"
)

// Scheduling engine codes.
const (
	// ErrInvalidConfiguration marks unusable scheduling settings
	// (for example min lead time greater than max). Fatal for the whole
	// operation, never retried.
	ErrInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"

	// ErrNoEligibleInbox means the selector filtered every inbox out.
	// Recoverable per recipient.
	ErrNoEligibleInbox ErrorCode = "NO_ELIGIBLE_INBOX"

	// ErrNoSlotAvailable means slot computation exhausted its retries and
	// the fallback policy is skip.
	ErrNoSlotAvailable ErrorCode = "NO_SLOT_AVAILABLE"

	// ErrSchedulingConflict marks a double-booking that the settings do not
	// permit.
	ErrSchedulingConflict ErrorCode = "SCHEDULING_CONFLICT"

	// ErrLockTimeout means the per-inbox lock could not be acquired within
	// its bound. Retryable.
	ErrLockTimeout ErrorCode = "LOCK_TIMEOUT"

	// ErrTransientSend and ErrPermanentSend mirror the transport error kinds.
	ErrTransientSend ErrorCode = "TRANSIENT_SEND_FAILURE"
	ErrPermanentSend ErrorCode = "PERMANENT_SEND_FAILURE"
)

// AppError is the error type services return. Code drives the HTTP mapping
// and retry decisions; Err keeps the underlying cause for logs.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether err is an *AppError carrying the given code.
func Is(err error, code ErrorCode) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Code == code
}

// Retryable reports whether the caller may retry the failed operation with a
// fresh reservation. Configuration and permanent failures are final.
func (e *AppError) Retryable() bool {
	switch e.Code {
	case ErrTransientSend, ErrLockTimeout:
		return true
	}
	return false
}

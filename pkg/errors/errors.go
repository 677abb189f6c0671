package apperrors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInsufficientStock = errors.New("insufficient stock")

	ErrLockNotAcquired    = errors.New("lock not acquired")
	ErrLockNotHeld        = errors.New("lock not held")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Retryable marks an error as transient. Event handlers return retryable
// errors when the event should stay eligible for redelivery; everything
// else is treated as a permanent failure.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// AsRetryable wraps err so IsRetryable reports true for it.
func AsRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// IsRetryable reports whether err (or anything it wraps) is transient.
// Lock acquisition timeouts and unreachable infrastructure are retryable
// by definition; business rule violations are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *retryableError
	if errors.As(err, &re) {
		return true
	}
	return errors.Is(err, ErrLockNotAcquired) || errors.Is(err, ErrServiceUnavailable)
}

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}

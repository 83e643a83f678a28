package services

import (
	"errors"
	"fmt"

	"estoquefacil/internal/payments"
	"estoquefacil/internal/plans"
	"estoquefacil/internal/store"
)

var (
	ErrUnauthenticated       = errors.New("authentication required")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidRequest        = errors.New("invalid request")
	ErrRemoteService         = errors.New("remote service unavailable")
	ErrNotFound              = store.ErrNotFound
	ErrConflict              = store.ErrConflict
	ErrPlanLimitReached      = errors.New("plan limit reached")
	ErrUsageUnavailable      = errors.New("usage unavailable")
	ErrPaymentsNotConfigured = errors.New("payments not configured")
	ErrStorageNotConfigured  = errors.New("photo storage not configured")
)

// ValidationError reports malformed input. The message is shown to the caller
// unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRequest }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// RemoteError wraps a failed call to Stripe, Redis, MinIO or the mail API.
// Callers see a generic message; the cause is kept for logs.
type RemoteError struct {
	Service string
	Op      string
	Err     error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteService }

// LimitError is returned when a create would exceed the plan cap.
type LimitError struct {
	Usage plans.Usage
}

func (e *LimitError) Error() string {
	return "plan limit reached: " + e.Usage.Label
}

func (e *LimitError) Is(target error) bool { return target == ErrPlanLimitReached }

// stripeError translates a payments failure: parameter rejections and
// undecodable webhook events become validation errors, everything else is
// remote.
func stripeError(op string, err error) error {
	var rejected *payments.RejectedError
	switch {
	case errors.As(err, &rejected):
		return &ValidationError{Field: rejected.Param, Message: rejected.Message}
	case errors.Is(err, payments.ErrMalformedEvent):
		return &ValidationError{Message: err.Error()}
	case errors.Is(err, payments.ErrNotConfigured):
		return ErrPaymentsNotConfigured
	default:
		return &RemoteError{Service: "stripe", Op: op, Err: err}
	}
}

package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired OTP")
	ErrConflict             = errors.New("conflict")
	ErrDependency           = errors.New("dependency unavailable")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrTooManyRequests      = errors.New("too many requests")
)

// Not-found refinements. Both satisfy errors.Is(err, ErrNotFound).
var (
	ErrOTPNotFound                 = notFound("otp not found")
	ErrPendingRegistrationNotFound = notFound("pending registration not found")
)

type notFoundError struct{ msg string }

func notFound(msg string) error { return &notFoundError{msg: msg} }

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Unwrap() error { return ErrNotFound }

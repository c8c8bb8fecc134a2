package otp

import "errors"

var (
	// ErrNotFound is returned when no pending entry exists for the email.
	ErrNotFound = errors.New("otp not found")
	// ErrExpired is returned when the pending entry is older than the TTL. The entry is evicted.
	ErrExpired = errors.New("otp expired")
	// ErrMismatch is returned when the supplied code differs from the pending one. The entry is kept.
	ErrMismatch = errors.New("otp mismatch")
	// ErrUnavailable wraps backend failures (Redis unreachable, corrupt record).
	ErrUnavailable = errors.New("otp backend unavailable")
)

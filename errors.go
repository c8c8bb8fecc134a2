package otpAuth

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so transports can map it without string matching.
type Kind int

const (
	// KindInternal covers failures that are not the caller's fault and not a known outage.
	KindInternal Kind = iota
	KindValidationFailed
	KindAlreadyExists
	KindNotFound
	KindInvalidCredentials
	KindNotVerified
	KindOtpExpired
	KindOtpMismatch
	KindUnavailable
)

var kindNames = [...]string{
	KindInternal:           "internal",
	KindValidationFailed:   "validation_failed",
	KindAlreadyExists:      "already_exists",
	KindNotFound:           "not_found",
	KindInvalidCredentials: "invalid_credentials",
	KindNotVerified:        "not_verified",
	KindOtpExpired:         "otp_expired",
	KindOtpMismatch:        "otp_mismatch",
	KindUnavailable:        "unavailable",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error is the error type returned by every Engine operation.
//
// Error values are compared by identity; wrap them with fmt.Errorf("%w") to add
// detail and recover the kind with [KindOf].
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	// ErrInvalidRequest is an exported constant or variable used by the authentication engine.
	ErrInvalidRequest = newError(KindValidationFailed, "invalid request")
	// ErrAccountExists is an exported constant or variable used by the authentication engine.
	ErrAccountExists = newError(KindAlreadyExists, "account already exists")
	// ErrAccountNotFound is an exported constant or variable used by the authentication engine.
	ErrAccountNotFound = newError(KindNotFound, "account not found")
	// ErrOTPNotFound is returned when no code is pending for the email.
	ErrOTPNotFound = newError(KindNotFound, "no pending verification code")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = newError(KindInvalidCredentials, "invalid credentials")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = newError(KindInvalidCredentials, "invalid token")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = newError(KindInvalidCredentials, "token expired")
	// ErrAccountUnverified is an exported constant or variable used by the authentication engine.
	ErrAccountUnverified = newError(KindNotVerified, "account unverified")
	// ErrOTPExpired is an exported constant or variable used by the authentication engine.
	ErrOTPExpired = newError(KindOtpExpired, "verification code expired")
	// ErrOTPMismatch is an exported constant or variable used by the authentication engine.
	ErrOTPMismatch = newError(KindOtpMismatch, "verification code mismatch")
	// ErrUnavailable is returned while a backing dependency is unreachable.
	ErrUnavailable = newError(KindUnavailable, "backend unavailable")
	// ErrInternal is an exported constant or variable used by the authentication engine.
	ErrInternal = newError(KindInternal, "internal error")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = newError(KindInternal, "engine not initialized")
)

func invalidRequest(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}

package jwt

import "errors"

var (
	// ErrMalformed is returned for tokens that cannot be decoded, use an unexpected
	// algorithm, or lack the account identifier claim.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature is returned when the signature does not match the payload.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned when the exp claim lies in the past.
	ErrExpired = errors.New("token expired")

	errUnexpectedAlg = errors.New("unexpected signing algorithm")
)

// Package middleware exposes net/http adapters around otpAuth.Engine.
//
// # Guards
//
//   - [RequireSession] validates the session token and injects its claims into
//     the request context.
//   - [RequestContext] copies the client IP and a request ID into the context so
//     audit events can be correlated.
//
// This package translates HTTP semantics into Engine calls. Token checks are
// delegated to Engine.ValidateToken; nothing here parses JWTs directly.
package middleware

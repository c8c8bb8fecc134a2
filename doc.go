// Package otpAuth implements a credential lifecycle engine: password-based
// registration gated by a short-lived numeric one-time passcode, followed by
// signed-token issuance for authenticated sessions.
//
// An account moves through three states. Register creates it unverified and
// emails a code; VerifyOtp consumes the code, marks the account verified and
// returns a session token; Login then trades email and password for a fresh
// token. ResendOtp replaces a pending code. Logout is stateless.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// otpAuth is the public surface. It exposes [Engine], [Builder], [Config], the
// [AccountStore] and [Notifier] contracts, and the [Error] type whose [Kind]
// transports map to status codes. Persistence lives in store/, code caching in
// otp/, token signing in jwt/, hashing in password/, delivery in notify/.
//
// # What this package must NOT do
//
//   - Hold a lock across hashing, store I/O, notification delivery or signing.
//   - Let a notification failure roll back or fail an account creation.
//   - Reveal whether an email is registered through Login errors.
//   - Import httpapi, middleware, store or supervisor (no import cycles).
package otpAuth

// Package internal contains helper utilities that are intentionally private to otpAuth,
// including secure random generation for passcodes and account identifiers.
//
// # Sub-packages
//
//   - dispatch: bounded async job runner used for outbound notifications
//   - logging: context-aware structured logger interface over slog
//   - config: server configuration loading from .env files, the environment and flags
//
// # What this package must NOT do
//
//   - Export types that appear in the public otpAuth API.
//   - Be imported by any package outside the otpAuth module.
package internal

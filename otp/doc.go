// Package otp holds pending one-time passcodes keyed by normalized email.
//
// A [Cache] keeps at most one live entry per email. [Cache.Issue] overwrites any
// previous entry, [Cache.Verify] consumes the entry on a correct code, and
// [Cache.Sweep] evicts entries whose age exceeds the configured TTL.
//
// Two implementations are provided:
//
//   - [MemoryCache]: in-process map guarded by a mutex, with a janitor loop ([MemoryCache.Run]).
//   - [RedisCache]: shared across instances; single-key sequences run inside WATCH/MULTI.
//
// # What this package must NOT do
//
//   - Hold a lock across anything other than map operations.
//   - Know about accounts, tokens, or notifications.
package otp

// Package supervisor keeps a backing connection usable. A [Supervisor] runs one
// background loop that connects, retries with exponential backoff on failure, and
// pings on a fixed interval once connected. Callers consult [Supervisor.Ready]
// to fail fast while the dependency is down.
package supervisor

// Package prometheus renders otpAuth metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads [otpAuth.Engine.MetricsSnapshot] on every
// scrape. Counter names are prefixed otpauth_*_total; the single histogram is
// otpauth_login_latency_seconds. Nothing is registered globally: callers mount
// [PrometheusExporter.Handler].
package prometheus

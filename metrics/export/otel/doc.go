// Package otel binds otpAuth metrics to OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter, an
// Int64ObservableGauge per histogram bucket and, when a readiness source is
// given, the store readiness gauge. One callback reads
// [otpAuth.Engine.MetricsSnapshot] per collection cycle. Callers own the
// MeterProvider; [Handler] serves a reader's collection as JSON.
package otel

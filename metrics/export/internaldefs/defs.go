package internaldefs

import (
	otpAuth "github.com/MrEthical07/otpAuth"
)

// CounterDef defines a public type used by otpAuth APIs.
type CounterDef struct {
	ID   otpAuth.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by otpAuth APIs.
type HistogramDef struct {
	ID   otpAuth.MetricID
	Name string
	Help string
}

// AuditDropped names the counter both exporters publish for dropped audit events.
const (
	AuditDroppedName = "otpauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// StoreReady names the gauge fed by the connection supervisor.
const (
	StoreReadyName = "otpauth_store_ready"
	StoreReadyHelp = "Whether the supervised account store is connected."
)

// CounterDefs lists every engine counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: otpAuth.MetricRegisterSuccess, Name: "otpauth_register_success_total", Help: "Accounts created by Register."},
	{ID: otpAuth.MetricRegisterDuplicate, Name: "otpauth_register_duplicate_total", Help: "Register calls rejected because the email is taken."},
	{ID: otpAuth.MetricRegisterFailure, Name: "otpauth_register_failure_total", Help: "Register calls failing for any other reason."},
	{ID: otpAuth.MetricOTPIssued, Name: "otpauth_otp_issued_total", Help: "Verification codes written to the cache."},
	{ID: otpAuth.MetricOTPVerifySuccess, Name: "otpauth_otp_verify_success_total", Help: "Verification codes consumed."},
	{ID: otpAuth.MetricOTPVerifyFailure, Name: "otpauth_otp_verify_failure_total", Help: "Verify attempts with a missing or mismatched code."},
	{ID: otpAuth.MetricOTPExpired, Name: "otpauth_otp_expired_total", Help: "Verify attempts against an expired code."},
	{ID: otpAuth.MetricOTPResend, Name: "otpauth_otp_resend_total", Help: "Successful ResendOtp calls."},
	{ID: otpAuth.MetricLoginSuccess, Name: "otpauth_login_success_total", Help: "Successful login attempts."},
	{ID: otpAuth.MetricLoginFailure, Name: "otpauth_login_failure_total", Help: "Login attempts with invalid credentials."},
	{ID: otpAuth.MetricLoginUnverified, Name: "otpauth_login_unverified_total", Help: "Logins refused because the account is unverified."},
	{ID: otpAuth.MetricLogout, Name: "otpauth_logout_total", Help: "Logout operations."},
	{ID: otpAuth.MetricTokenRejected, Name: "otpauth_token_rejected_total", Help: "Session tokens refused by validation."},
	{ID: otpAuth.MetricNotificationQueued, Name: "otpauth_notification_queued_total", Help: "Notifications accepted by the dispatch queue."},
	{ID: otpAuth.MetricNotificationRejected, Name: "otpauth_notification_rejected_total", Help: "Notifications refused by a full or closed queue."},
	{ID: otpAuth.MetricNotificationFailure, Name: "otpauth_notification_failure_total", Help: "Notifications whose delivery failed."},
	{ID: otpAuth.MetricBackendUnavailable, Name: "otpauth_backend_unavailable_total", Help: "Requests failed because a backend was unavailable."},
}

// HistogramDefs lists the engine histograms.
var HistogramDefs = []HistogramDef{
	{ID: otpAuth.MetricLoginLatency, Name: "otpauth_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the Prometheus le labels matching the engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is the instrument-name-safe form of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

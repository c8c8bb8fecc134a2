package otpAuth

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by otpAuth APIs.
//
// MetricID values index the fixed counter array; exporters map them to names.
type MetricID uint16

const (
	// MetricRegisterSuccess counts accounts created by Register.
	MetricRegisterSuccess MetricID = iota
	// MetricRegisterDuplicate counts Register calls rejected as already existing.
	MetricRegisterDuplicate
	// MetricRegisterFailure counts Register calls failing for any other reason.
	MetricRegisterFailure
	// MetricOTPIssued counts codes written to the cache.
	MetricOTPIssued
	// MetricOTPVerifySuccess counts consumed codes.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts missing or mismatched codes.
	MetricOTPVerifyFailure
	// MetricOTPExpired counts verify attempts against an expired code.
	MetricOTPExpired
	// MetricOTPResend counts successful ResendOtp calls.
	MetricOTPResend
	// MetricLoginSuccess counts issued login tokens.
	MetricLoginSuccess
	// MetricLoginFailure counts invalid-credential logins.
	MetricLoginFailure
	// MetricLoginUnverified counts logins refused for unverified accounts.
	MetricLoginUnverified
	// MetricLogout counts Logout calls.
	MetricLogout
	// MetricTokenRejected counts tokens refused by ValidateToken.
	MetricTokenRejected
	// MetricNotificationQueued counts notifications accepted by the dispatch queue.
	MetricNotificationQueued
	// MetricNotificationRejected counts notifications refused by a full or closed queue.
	MetricNotificationRejected
	// MetricNotificationFailure counts notifications whose delivery failed.
	MetricNotificationFailure
	// MetricBackendUnavailable counts requests rejected while a backend was down.
	MetricBackendUnavailable
	// MetricLoginLatency is the only histogram: wall time of Login.
	MetricLoginLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by otpAuth APIs.
//
// Counters are lock-free and padded to a cache line each. A nil or disabled
// Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by otpAuth APIs.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricLoginLatency has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricLoginLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, plus the latency buckets when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < MetricLoginLatency; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricLoginLatency].buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
	}

	return s
}

// bucketIndex maps a duration onto the exporter bounds 5ms..500ms,+Inf.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}

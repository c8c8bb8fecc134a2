package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	otpAuth "github.com/MrEthical07/otpAuth"
)

type fakeSource struct {
	snapshot otpAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() otpAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

type fixedReadiness bool

func (r fixedReadiness) Ready() bool { return bool(r) }

func emptySnapshot() otpAuth.MetricsSnapshot {
	return otpAuth.MetricsSnapshot{
		Counters:   map[otpAuth.MetricID]uint64{},
		Histograms: map[otpAuth.MetricID][]uint64{},
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{snapshot: emptySnapshot()})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: otpAuth.MetricsSnapshot{
			Counters: map[otpAuth.MetricID]uint64{
				otpAuth.MetricLoginSuccess:    7,
				otpAuth.MetricRegisterSuccess: 3,
			},
			Histograms: map[otpAuth.MetricID][]uint64{
				otpAuth.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"otpauth_login_success_total 7",
		"otpauth_register_success_total 3",
		"otpauth_otp_expired_total 0",
		"# TYPE otpauth_login_latency_seconds histogram",
		"otpauth_login_latency_seconds_bucket{le=\"0.005\"} 1",
		"otpauth_login_latency_seconds_bucket{le=\"+Inf\"} 36",
		"otpauth_login_latency_seconds_count 36",
		"otpauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "otpauth_store_ready") {
		t.Fatal("readiness gauge rendered without a readiness source")
	}
	if out != exp.Render() {
		t.Fatal("render is not deterministic")
	}
}

func TestRenderReadinessGauge(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{snapshot: emptySnapshot()}).
		WithReadiness(fixedReadiness(false))
	if out := exp.Render(); !strings.Contains(out, "otpauth_store_ready 0") {
		t.Fatalf("expected not-ready gauge, got:\n%s", out)
	}

	exp.WithReadiness(fixedReadiness(true))
	if out := exp.Render(); !strings.Contains(out, "# TYPE otpauth_store_ready gauge\notpauth_store_ready 1") {
		t.Fatalf("expected ready gauge, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: otpAuth.MetricsSnapshot{
			Counters:   map[otpAuth.MetricID]uint64{otpAuth.MetricLoginSuccess: 1},
			Histograms: map[otpAuth.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: otpAuth.MetricsSnapshot{
			Counters: map[otpAuth.MetricID]uint64{
				otpAuth.MetricRegisterSuccess:  500,
				otpAuth.MetricOTPVerifySuccess: 450,
				otpAuth.MetricLoginSuccess:     1000,
				otpAuth.MetricLoginFailure:     40,
			},
			Histograms: map[otpAuth.MetricID][]uint64{
				otpAuth.MetricLoginLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labelValue string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelValue == "" {
				return m.GetCounter().GetValue()
			}
			for _, l := range m.GetLabel() {
				if l.GetValue() == labelValue {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s (label %q) not found", name, labelValue)
	return 0
}

// TestRecordSignIn_CountsByResult はサインインが結果別に集計されることを検証する。
func TestRecordSignIn_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignIn("success")
	c.RecordSignIn("success")
	c.RecordSignIn("failure")

	if got := counterValue(t, reg, "hub_sign_in_total", "success"); got != 2 {
		t.Errorf("sign_in_total{success} = %v, want 2", got)
	}
	if got := counterValue(t, reg, "hub_sign_in_total", "failure"); got != 1 {
		t.Errorf("sign_in_total{failure} = %v, want 1", got)
	}
}

// TestRecordGuardDecision_CountsByOutcome はガード判定が結果別に集計されることを検証する。
func TestRecordGuardDecision_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGuardDecision("content")
	c.RecordGuardDecision("access_denied")
	c.RecordGuardDecision("content")

	if got := counterValue(t, reg, "hub_guard_decision_total", "content"); got != 2 {
		t.Errorf("guard_decision_total{content} = %v, want 2", got)
	}
	if got := counterValue(t, reg, "hub_guard_decision_total", "access_denied"); got != 1 {
		t.Errorf("guard_decision_total{access_denied} = %v, want 1", got)
	}
}

// TestRecordSignOut_IncrementsCounter はサインアウトカウンタが増加することを検証する。
func TestRecordSignOut_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignOut()

	if got := counterValue(t, reg, "hub_sign_out_total", ""); got != 1 {
		t.Errorf("sign_out_total = %v, want 1", got)
	}
}

// TestHandler_ExposesRegisteredMetrics は/metricsハンドラーが登録済みメトリクスを公開することを検証する。
func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSessionResolution(42 * time.Millisecond)
	c.RecordContactSubmission()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	text := string(body)

	if !strings.Contains(text, "hub_session_resolution_seconds") {
		t.Error("expected session resolution histogram in scrape output")
	}
	if !strings.Contains(text, "hub_contact_submission_total 1") {
		t.Error("expected contact submission counter in scrape output")
	}
}

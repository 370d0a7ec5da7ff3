package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCheck("no_cross")
	m.ObserveCheckFailure()
	m.ObserveSignal("golden_cross", "closed")
	m.ObserveFetch(time.Second)
	m.SetActiveMonitors(3)
	m.ObserveNotifyFailure("telegram")
	m.SetStreamClients(1)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveCheck("no_cross")
	m.ObserveCheck("no_cross")
	m.ObserveSignal("golden_cross", "intrabar")
	m.SetActiveMonitors(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`aistock_monitor_checks_total{reason="no_cross"} 2`,
		`aistock_monitor_signals_total{status="intrabar",type="golden_cross"} 1`,
		`aistock_monitors_active 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthStatus()

	report, code := h.Snapshot()
	if code != http.StatusOK || report.Status != "healthy" {
		t.Errorf("no deps enabled: got %s/%d", report.Status, code)
	}

	h.EnableRedis()
	h.EnableSQLite()
	h.mu.Lock()
	h.SQLiteOK = true
	h.mu.Unlock()

	report, code = h.Snapshot()
	if code != http.StatusServiceUnavailable || report.Status != "degraded" {
		t.Errorf("redis down: got %s/%d", report.Status, code)
	}

	h.mu.Lock()
	h.SQLiteOK = false
	h.mu.Unlock()
	report, _ = h.Snapshot()
	if report.Status != "unhealthy" {
		t.Errorf("all down: got %s", report.Status)
	}
}

func TestHealthServeHTTP(t *testing.T) {
	h := NewHealthStatus()
	h.SetActiveMonitors(4)
	h.SetLastCheckTime(time.Now())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body Report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.ActiveMonitors != 4 || body.LastCheckTime == "" {
		t.Errorf("unexpected body: %+v", body)
	}
}

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func newTestAggregator(status Status) *Aggregator {
	agg := NewAggregator()
	agg.Register("api", NewCheckerFunc("api", func(ctx context.Context) Result {
		return Healthy("ok")
	}))
	agg.Register("lecturers", NewCheckerFunc("lecturers", func(ctx context.Context) Result {
		switch status {
		case StatusDegraded:
			return Degraded("last fetch failed")
		case StatusUnhealthy:
			return Unhealthy("down", errors.New("boom"))
		default:
			return Healthy("ok")
		}
	}))
	return agg
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Code = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("Body = %q, want OK", rec.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		status   Status
		wantCode int
		wantBody string
	}{
		{StatusHealthy, http.StatusOK, "OK"},
		{StatusDegraded, http.StatusOK, "DEGRADED"},
		{StatusUnhealthy, http.StatusServiceUnavailable, "UNHEALTHY"},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(newTestAggregator(tt.status))(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Code = %d, want %d", rec.Code, tt.wantCode)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("Body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestDetailedHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	DetailedHandler(newTestAggregator(StatusUnhealthy))(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d, want 503", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != "unhealthy" {
		t.Errorf("Status = %q, want unhealthy", report.Status)
	}
	if report.Checks["lecturers"].Error != "boom" {
		t.Errorf("lecturers error = %q, want boom", report.Checks["lecturers"].Error)
	}
	if !slices.Equal(report.Names(), []string{"api", "lecturers"}) {
		t.Errorf("Names() = %v", report.Names())
	}
}

func TestRegisterHandlers(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux, newTestAggregator(StatusDegraded))

	for _, path := range []string{"/healthz", "/readyz", "/health"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: Code = %d, want 200", path, rec.Code)
		}
	}
}

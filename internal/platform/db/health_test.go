package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func runHealth(t *testing.T, p Pinger) (int, HealthReport) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/db", nil), rec)
	if err := HealthHandler(p)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var report HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return rec.Code, report
}

func TestHealthHandler_Healthy(t *testing.T) {
	code, report := runHealth(t, fakePinger{})
	if code != http.StatusOK || report.Status != "healthy" {
		t.Errorf("got %d %q", code, report.Status)
	}
	if report.Latency == "" {
		t.Error("expected latency")
	}
	if report.Pool != nil {
		t.Error("pool stats only apply to pgxpool")
	}
}

func TestHealthHandler_Unhealthy(t *testing.T) {
	code, report := runHealth(t, fakePinger{err: errors.New("connection refused")})
	if code != http.StatusServiceUnavailable || report.Status != "unhealthy" {
		t.Errorf("got %d %q", code, report.Status)
	}
}

package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestParseBodyLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 1 << 20, false},
		{"512K", 512_000, false},
		{"2M", 2_000_000, false},
		{"2MB", 2_000_000, false},
		{"1MiB", 1 << 20, false},
		{" 1G ", 1_000_000_000, false},
		{"100", 100, false},
		{"lots", 0, true},
		{"0", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBodyLimit(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBodyLimit(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseBodyLimit(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func readBody(c echo.Context) error {
	b, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, string(b))
}

func TestBodyLimit_UnderLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/preauth", strings.NewReader(`{"admission_id":1}`))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := BodyLimit(1024)(readBody)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Body.String() != `{"admission_id":1}` {
		t.Errorf("expected body passed through, got %q", rec.Body.String())
	}
}

func TestBodyLimit_ContentLengthRejectedEarly(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/preauth", strings.NewReader(strings.Repeat("x", 64)))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	err := BodyLimit(16)(func(c echo.Context) error {
		called = true
		return nil
	})(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
	if called {
		t.Error("handler should not run when Content-Length is over the limit")
	}
}

func TestBodyLimit_UndeclaredLengthRejectedOnRead(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/preauth", strings.NewReader(strings.Repeat("x", 64)))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := BodyLimit(16)(readBody)(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %v", err)
	}
}

func TestBodyLimit_NoBody(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/preauth", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := BodyLimit(1)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

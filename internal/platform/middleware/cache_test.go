package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestInMemoryCacheStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryCacheStore()
	_ = s.Set(ctx, "k", []byte("v"), -time.Second)
	if _, ok := s.Get(ctx, "k"); ok {
		t.Error("expected expired entry to miss")
	}
	if s.Len() != 0 {
		t.Errorf("expected lazy delete, got %d entries", s.Len())
	}
}

func TestInMemoryCacheStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryCacheStore()
	_ = s.Set(ctx, "route:a:/api/v1/preauth", []byte("1"), time.Minute)
	_ = s.Set(ctx, "route:a:/api/v1/preauth?status=Pending", []byte("2"), time.Minute)
	_ = s.Set(ctx, "route:a:/api/v1/claims", []byte("3"), time.Minute)

	if err := s.DeletePrefix(ctx, "route:a:/api/v1/preauth"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", s.Len())
	}
	if _, ok := s.Get(ctx, "route:a:/api/v1/claims"); !ok {
		t.Error("claims entry should survive")
	}
}

func TestRedisCacheStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisCacheStore(client)
	defer s.Close()
	ctx := context.Background()

	if err := s.Set(ctx, "route:t:/api/v1/claims?page=1", []byte(`{"a":1}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "route:t:/api/v1/preauth", []byte(`{}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	data, ok := s.Get(ctx, "route:t:/api/v1/claims?page=1")
	if !ok || string(data) != `{"a":1}` {
		t.Fatalf("expected hit, got %q %v", data, ok)
	}

	if err := s.DeletePrefix(ctx, "route:t:/api/v1/claims"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if _, ok := s.Get(ctx, "route:t:/api/v1/claims?page=1"); ok {
		t.Error("expected claims key to be gone")
	}
	if _, ok := s.Get(ctx, "route:t:/api/v1/preauth"); !ok {
		t.Error("expected preauth key to remain")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := s.Get(ctx, "route:t:/api/v1/preauth"); ok {
		t.Error("expected TTL expiry")
	}
}

func serveCached(t *testing.T, e *echo.Echo, rc *RouteCache, tenant, target string, calls *int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("tenant_id", tenant)

	handler := rc.Middleware()(func(c echo.Context) error {
		*calls++
		return c.JSON(http.StatusOK, map[string]int{"calls": *calls})
	})
	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestRouteCache_HitMissAndInvalidate(t *testing.T) {
	e := echo.New()
	store := NewInMemoryCacheStore()
	rc := NewRouteCache(store, time.Minute, zerolog.Nop(), "/api/v1/preauth", "/api/v1/claims")
	calls := 0

	rec := serveCached(t, e, rc, "acme", "/api/v1/preauth?status=Pending", &calls)
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Errorf("expected MISS, got %q", rec.Header().Get("X-Cache"))
	}
	rec = serveCached(t, e, rc, "acme", "/api/v1/preauth?status=Pending", &calls)
	if rec.Header().Get("X-Cache") != "HIT" || calls != 1 {
		t.Errorf("expected HIT with 1 call, got %q with %d", rec.Header().Get("X-Cache"), calls)
	}

	// Another tenant never sees acme's cached view.
	serveCached(t, e, rc, "globex", "/api/v1/preauth?status=Pending", &calls)
	if calls != 2 {
		t.Errorf("expected separate tenant cache, calls=%d", calls)
	}

	if err := rc.InvalidatePaths(context.Background(), "acme", "/api/v1/preauth"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	serveCached(t, e, rc, "acme", "/api/v1/preauth?status=Pending", &calls)
	if calls != 3 {
		t.Errorf("expected re-render after invalidation, calls=%d", calls)
	}
	serveCached(t, e, rc, "globex", "/api/v1/preauth?status=Pending", &calls)
	if calls != 3 {
		t.Errorf("other tenant should still be cached, calls=%d", calls)
	}
}

func TestRouteCache_SkipsUncachedPathsAndWrites(t *testing.T) {
	e := echo.New()
	rc := NewRouteCache(NewInMemoryCacheStore(), time.Minute, zerolog.Nop(), "/api/v1/claims")
	calls := 0

	serveCached(t, e, rc, "t", "/api/v1/reports/measures", &calls)
	serveCached(t, e, rc, "t", "/api/v1/reports/measures", &calls)
	if calls != 2 {
		t.Errorf("uncached path should always reach handler, calls=%d", calls)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	posted := false
	_ = rc.Middleware()(func(c echo.Context) error {
		posted = true
		return nil
	})(c)
	if !posted {
		t.Error("POST should pass through")
	}
}

func TestRouteCache_ZeroTTLDisables(t *testing.T) {
	e := echo.New()
	rc := NewRouteCache(NewInMemoryCacheStore(), 0, zerolog.Nop(), "/api/v1/claims")
	calls := 0
	serveCached(t, e, rc, "t", "/api/v1/claims", &calls)
	serveCached(t, e, rc, "t", "/api/v1/claims", &calls)
	if calls != 2 {
		t.Errorf("expected caching disabled, calls=%d", calls)
	}
}

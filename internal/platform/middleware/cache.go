package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// CacheStore is a response cache backend shared by the route cache.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// InMemoryCacheStore is a process-local CacheStore with lazy expiration.
type InMemoryCacheStore struct {
	entries map[string]*cacheEntry
	mu      sync.RWMutex
}

func NewInMemoryCacheStore() *InMemoryCacheStore {
	return &InMemoryCacheStore{entries: make(map[string]*cacheEntry)}
}

func (s *InMemoryCacheStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}
	return entry.data, true
}

func (s *InMemoryCacheStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &cacheEntry{data: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryCacheStore) DeletePrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	return nil
}

// Len reports the number of live and expired-but-unswept entries.
func (s *InMemoryCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartCleanup sweeps expired entries until ctx is cancelled.
func (s *InMemoryCacheStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				now := time.Now()
				for k, v := range s.entries {
					if now.After(v.expiresAt) {
						delete(s.entries, k)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}

// RedisCacheStore keeps cached views in Redis so every replica sees the same
// invalidations.
type RedisCacheStore struct {
	client redis.UniversalClient
}

func NewRedisCacheStore(client redis.UniversalClient) *RedisCacheStore {
	return &RedisCacheStore{client: client}
}

// NewRedisCacheStoreFromURL parses a redis:// URL and pings the server.
func NewRedisCacheStoreFromURL(ctx context.Context, url string) (*RedisCacheStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCacheStore{client: client}, nil
}

func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *RedisCacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisCacheStore) DeletePrefix(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisCacheStore) Close() error {
	return s.client.Close()
}

// bufferedResponseWriter holds the handler's output so a cacheable response
// can be stored before it is flushed.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        *bytes.Buffer
	statusCode int
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{writer: w, buf: &bytes.Buffer{}, statusCode: http.StatusOK}
}

func (w *bufferedResponseWriter) Header() http.Header { return w.writer.Header() }

func (w *bufferedResponseWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }

func (w *bufferedResponseWriter) WriteHeader(code int) { w.statusCode = code }

func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() > 0 {
		_, err := w.writer.Write(w.buf.Bytes())
		return err
	}
	return nil
}

const routeKeyPrefix = "route:"

// RouteCache caches GET list views per tenant and lets writers drop every
// cached variant of a path after they commit.
type RouteCache struct {
	store  CacheStore
	ttl    time.Duration
	paths  []string
	logger zerolog.Logger
}

// NewRouteCache caches GET responses for request paths starting with one of
// paths. A zero ttl disables caching but keeps invalidation a no-op.
func NewRouteCache(store CacheStore, ttl time.Duration, logger zerolog.Logger, paths ...string) *RouteCache {
	return &RouteCache{store: store, ttl: ttl, paths: paths, logger: logger}
}

func routeKey(tenant, path, rawQuery string) string {
	key := routeKeyPrefix + tenant + ":" + path
	if rawQuery != "" {
		key += "?" + rawQuery
	}
	return key
}

func (rc *RouteCache) cacheable(path string) bool {
	for _, p := range rc.paths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// Middleware must run after the tenant middleware so the key carries the
// tenant id.
func (rc *RouteCache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if rc.ttl <= 0 || req.Method != http.MethodGet || !rc.cacheable(req.URL.Path) {
				return next(c)
			}

			tenant, _ := c.Get("tenant_id").(string)
			key := routeKey(tenant, req.URL.Path, req.URL.RawQuery)

			if data, ok := rc.store.Get(req.Context(), key); ok {
				res := c.Response()
				res.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
				res.Header().Set("X-Cache", "HIT")
				res.WriteHeader(http.StatusOK)
				_, err := res.Write(data)
				return err
			}

			res := c.Response()
			origWriter := res.Writer
			buf := newBufferedResponseWriter(origWriter)
			res.Writer = buf

			if err := next(c); err != nil {
				res.Writer = origWriter
				return err
			}
			res.Writer = origWriter

			if buf.statusCode == http.StatusOK {
				if err := rc.store.Set(req.Context(), key, buf.buf.Bytes(), rc.ttl); err != nil {
					rc.logger.Warn().Err(err).Str("key", key).Msg("route cache write failed")
				}
			}
			res.Header().Set("X-Cache", "MISS")
			return buf.flushTo()
		}
	}
}

// InvalidatePaths drops every cached variant (any query string, any nested
// path) of each path for one tenant.
func (rc *RouteCache) InvalidatePaths(ctx context.Context, tenant string, paths ...string) error {
	var firstErr error
	for _, p := range paths {
		if err := rc.store.DeletePrefix(ctx, routeKeyPrefix+tenant+":"+p); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("invalidate %s: %w", p, err)
		}
	}
	return firstErr
}

package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/bytes"
)

const defaultBodyLimit = 1 << 20

// ParseBodyLimit turns a size such as "512K", "2MB" or "1MiB" into bytes.
// K, M and G are decimal; Ki, Mi and Gi are binary.
func ParseBodyLimit(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultBodyLimit, nil
	}
	n, err := bytes.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("parse body limit %q: %w", s, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("body limit %q must be positive", s)
	}
	return n, nil
}

// BodyLimit caps request bodies at limit bytes. Requests that declare a
// larger Content-Length fail fast; others fail on the read that crosses the
// limit.
func BodyLimit(limit int64) echo.MiddlewareFunc {
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > limit {
				return tooLarge(limit)
			}
			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: limit, limit: limit}
			return next(c)
		}
	}
}

func tooLarge(limit int64) error {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
		fmt.Sprintf("request body exceeds %s", bytes.Format(limit)))
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	limit     int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (int, error) {
	if r.exceeded {
		return 0, tooLarge(r.limit)
	}
	// One byte past the limit is enough to detect overflow.
	if int64(len(p)) > r.remaining+1 {
		p = p[:r.remaining+1]
	}
	n, err := r.ReadCloser.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		r.exceeded = true
		return 0, tooLarge(r.limit)
	}
	return n, err
}

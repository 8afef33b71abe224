package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(target string) Params {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name   string
		target string
		limit  int
		offset int
	}{
		{"defaults", "/", DefaultLimit, 0},
		{"limit and offset", "/?limit=50&offset=10", 50, 10},
		{"page and per_page", "/?page=3&per_page=10", 10, 20},
		{"page one", "/?page=1", DefaultLimit, 0},
		{"offset wins over page", "/?offset=7&page=4", DefaultLimit, 7},
		{"max limit", "/?limit=1000", MaxLimit, 0},
		{"negative values", "/?limit=-5&offset=-3", DefaultLimit, 0},
		{"garbage", "/?limit=abc&page=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paramsFor(tt.target)
			if p.Limit != tt.limit || p.Offset != tt.offset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d", p.Limit, p.Offset, tt.limit, tt.offset)
			}
		})
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	r := NewResponse([]int{1, 2}, 5, 2, 0)
	if !r.HasMore {
		t.Error("expected more results")
	}
	r = NewResponse([]int{5}, 5, 2, 4)
	if r.HasMore {
		t.Error("expected last page")
	}
}

func TestParams_Page(t *testing.T) {
	if got := (Params{Limit: 10, Offset: 20}).Page(); got != 3 {
		t.Errorf("expected page 3, got %d", got)
	}
	if got := (Params{}).Page(); got != 1 {
		t.Errorf("expected page 1, got %d", got)
	}
}

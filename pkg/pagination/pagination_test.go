package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	cases := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", DefaultLimit, 0},
		{"limit=50&offset=10", 50, 10},
		{"limit=500", MaxLimit, 0},
		{"limit=-1&offset=-5", DefaultLimit, 0},
	}
	for _, tc := range cases {
		p := paramsFor(t, tc.query)
		if p.Limit != tc.wantLimit || p.Offset != tc.wantOffset {
			t.Errorf("%q: got %+v", tc.query, p)
		}
	}
}

func TestNewResponse(t *testing.T) {
	r := NewResponse([]int{1, 2}, 50, 20, 0)
	if !r.HasMore {
		t.Error("expected HasMore at offset 0 of 50")
	}
	r = NewResponse([]int{1}, 50, 20, 40)
	if r.HasMore {
		t.Error("expected last page")
	}
}

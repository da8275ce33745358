package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	return echo.New().NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		query  string
		limit  int
		offset int
		page   int
	}{
		{"", DefaultLimit, 0, 1},
		{"?limit=50&offset=10", 50, 10, 1},
		{"?limit=10&page=3", 10, 20, 3},
		{"?limit=10&page=2&offset=99", 10, 10, 2},
		{"?limit=500", MaxLimit, 0, 1},
		{"?limit=-4&offset=-1", DefaultLimit, 0, 1},
		{"?limit=abc&page=zero", DefaultLimit, 0, 1},
		{"?page=0&offset=40", DefaultLimit, 40, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := FromContext(newContext("/api/consultations" + tt.query))
			if p.Limit != tt.limit || p.Offset != tt.offset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d", p.Limit, p.Offset, tt.limit, tt.offset)
			}
			if p.Page() != tt.page {
				t.Errorf("got page %d, want %d", p.Page(), tt.page)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 5, Params{Limit: 2, Offset: 2})
	if !resp.HasMore || resp.Page != 2 || resp.Total != 5 {
		t.Errorf("unexpected envelope %+v", resp)
	}

	last := NewResponse([]string{"e"}, 5, Params{Limit: 2, Offset: 4})
	if last.HasMore {
		t.Error("expected last page to report no more results")
	}
}

func TestNewResponse_NilDataRendersEmptyArray(t *testing.T) {
	var none []int
	b, err := json.Marshal(NewResponse(none, 0, Params{Limit: DefaultLimit}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"data":[],"total":0,"page":1,"limit":20,"offset":0,"has_more":false}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/neonviz/neon/internal/api"
	"github.com/neonviz/neon/internal/models"
)

func filterRouter(svc *mockFilters) http.Handler {
	r := newTestRouter()
	h := api.NewFilterHandler(svc, testLogger())
	r.GET("/filters", h.List)
	r.POST("/filters/exchange", h.Exchange)
	r.DELETE("/filters", h.Clear)

	return r
}

func TestFilterExchange(t *testing.T) {
	t.Parallel()

	var got models.ExchangeRequest
	svc := &mockFilters{
		exchangeFn: func(_ context.Context, tenantID string, req models.ExchangeRequest) ([]models.FilterDesign, error) {
			if tenantID != testTenantID {
				t.Errorf("unexpected tenant %q", tenantID)
			}
			got = req
			return req.Set, nil
		},
	}

	body := `{
		"set": [{"compound":"and","field":{"database":"ds","table":"docs","column":"category"},"operator":"!=","values":["Books",null]}],
		"delete": [{"compound":"and","field":{"database":"ds","table":"docs","column":"type"},"operator":"!=","values":[null]}],
		"notify_self": true
	}`

	w := doRequest(filterRouter(svc), http.MethodPost, "/filters/exchange", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(got.Set) != 1 || len(got.Delete) != 1 || !got.NotifySelf {
		t.Fatalf("unexpected exchange: %+v", got)
	}

	values := got.Set[0].Values
	if len(values) != 2 || values[0].String() != "Books" || !values[1].IsUndefined() {
		t.Errorf("null must decode as the undefined value, got %+v", values)
	}

	var resp struct {
		Filters []models.FilterDesign `json:"filters"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Filters) != 1 {
		t.Errorf("expected 1 active filter, got %d", len(resp.Filters))
	}
}

func TestFilterExchange_Invalid(t *testing.T) {
	t.Parallel()

	svc := &mockFilters{
		exchangeFn: func(context.Context, string, models.ExchangeRequest) ([]models.FilterDesign, error) {
			t.Error("service must not be called")
			return nil, nil
		},
	}

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"set":[`},
		{"missing column", `{"set":[{"compound":"and","field":{"database":"ds","table":"docs"},"operator":"!=","values":["a"]}]}`},
		{"missing operator", `{"set":[{"compound":"and","field":{"database":"ds","table":"docs","column":"c"},"values":["a"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(filterRouter(svc), http.MethodPost, "/filters/exchange", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestFilterListAndClear(t *testing.T) {
	t.Parallel()

	svc := &mockFilters{
		listFn: func(context.Context, string) ([]models.FilterDesign, error) {
			return nil, errors.New("db down")
		},
		clearFn: func(context.Context, string) (int, error) {
			return 4, nil
		},
	}
	r := filterRouter(svc)

	if w := doRequest(r, http.MethodGet, "/filters", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("list: expected 500, got %d", w.Code)
	}

	w := doRequest(r, http.MethodDelete, "/filters", "")
	if w.Code != http.StatusOK {
		t.Fatalf("clear: expected 200, got %d", w.Code)
	}

	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["deleted"] != 4 {
		t.Errorf("expected 4 deleted, got %d", body["deleted"])
	}
}

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/neonviz/neon/internal/api"
	"github.com/neonviz/neon/internal/middleware"
	"github.com/neonviz/neon/internal/models"
)

type staticLookup map[string]string

func (s staticLookup) GetTenantByAPIKey(_ context.Context, apiKey string) (string, error) {
	if tid, ok := s[apiKey]; ok {
		return tid, nil
	}
	return "", models.ErrWidgetNotFound
}

func newRouter(t *testing.T, lookup middleware.TenantLookup) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return api.NewRouter(ctx, &api.RouterDeps{
		Log:            testLogger(),
		Taxonomy:       &mockTaxonomy{widgets: []models.WidgetSummary{{ID: "docs"}}},
		Filters:        &mockFilters{listFn: func(context.Context, string) ([]models.FilterDesign, error) { return nil, nil }},
		Records:        &mockRecords{},
		TenantLookup:   lookup,
		LocalTenant:    testTenantID,
		CORSOrigins:    []string{"http://localhost:3002"},
		Version:        "test",
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	})
}

func TestRouter_Authenticated(t *testing.T) {
	t.Parallel()

	r := newRouter(t, staticLookup{"key-1": testTenantID})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is public", "/api/v1/health", "", http.StatusOK},
		{"ready is public", "/api/v1/ready", "", http.StatusOK},
		{"widgets need a key", "/api/v1/widgets", "", http.StatusUnauthorized},
		{"widgets with key", "/api/v1/widgets", "Bearer key-1", http.StatusOK},
		{"filters with key", "/api/v1/filters", "Bearer key-1", http.StatusOK},
		{"unknown route", "/api/v1/nodes", "Bearer key-1", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}

			if w.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request id header")
			}

			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("missing security headers")
			}
		})
	}
}

func TestRouter_AuthDisabledUsesLocalTenant(t *testing.T) {
	t.Parallel()

	r := newRouter(t, nil)

	w := doRequest(r, http.MethodGet, "/api/v1/widgets", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// No hub is configured, so the event stream is unavailable.
	w = doRequest(r, http.MethodGet, "/api/v1/ws", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

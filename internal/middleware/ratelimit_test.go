package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/neonviz/neon/internal/httputil"
	"github.com/neonviz/neon/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func limitedRouter(t *testing.T, perSec float64, burst int) *gin.Engine {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.Use(middleware.NewRateLimiter(ctx, perSec, burst).Handler())
	r.GET("/widgets", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r
}

func hit(r http.Handler, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/widgets", http.NoBody)
	req.RemoteAddr = ip + ":1234"
	r.ServeHTTP(w, req)

	return w
}

func TestRateLimiter(t *testing.T) {
	tests := []struct {
		name   string
		perSec float64
		burst  int
		ips    []string
		want   []int
	}{
		{"within burst", 10, 5, []string{"1.2.3.4"}, []int{200}},
		{"burst exhausted", 0.001, 2, []string{"1.2.3.4", "1.2.3.4", "1.2.3.4"}, []int{200, 200, 429}},
		{"buckets are per ip", 0.001, 1, []string{"1.1.1.1", "2.2.2.2", "1.1.1.1"}, []int{200, 200, 429}},
		{"fast refill", 1_000_000, 1, []string{"5.5.5.5", "5.5.5.5", "5.5.5.5"}, []int{200, 200, 200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := limitedRouter(t, tt.perSec, tt.burst)

			for i, ip := range tt.ips {
				if got := hit(r, ip).Code; got != tt.want[i] {
					t.Fatalf("request %d from %s: expected %d, got %d", i, ip, tt.want[i], got)
				}
			}
		})
	}
}

func TestRateLimiter_RetryAfter(t *testing.T) {
	r := limitedRouter(t, 0.001, 1)
	hit(r, "9.9.9.9")

	w := hit(r, "9.9.9.9")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}

	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After header, got %q", w.Header().Get("Retry-After"))
	}

	assertErrorCode(t, w, "rate_limited")
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()

	var body httputil.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}

	if body.Code != want {
		t.Errorf("expected code %q, got %q", want, body.Code)
	}
}

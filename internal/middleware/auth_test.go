package middleware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neonviz/neon/internal/middleware"
)

type mockTenantLookup struct {
	validKeys map[string]string
	calls     atomic.Int32
}

func (m *mockTenantLookup) GetTenantByAPIKey(_ context.Context, apiKey string) (string, error) {
	m.calls.Add(1)
	if tid, ok := m.validKeys[apiKey]; ok {
		return tid, nil
	}
	return "", errors.New("invalid key")
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func authRouter(lookup middleware.TenantLookup, lockout *middleware.Lockout) (*gin.Engine, *string) {
	var gotTenant string

	r := gin.New()
	r.Use(middleware.AuthMiddleware(lookup, quietLogger(), lockout))
	r.GET("/test", func(c *gin.Context) {
		gotTenant = c.GetString(middleware.TenantKey)
		c.Status(http.StatusOK)
	})

	return r, &gotTenant
}

func doAuth(r http.Handler, header string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)

	return w.Code
}

func TestAuthMiddleware(t *testing.T) {
	lookup := &mockTenantLookup{validKeys: map[string]string{"good-key": "tenant-1"}}

	tests := []struct {
		name       string
		authHeader string
		wantCode   int
	}{
		{"valid token", "Bearer good-key", http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"invalid token", "Bearer bad-key", http.StatusUnauthorized},
		{"no bearer prefix", "good-key", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := authRouter(lookup, nil)
			if got := doAuth(r, tt.authHeader); got != tt.wantCode {
				t.Errorf("got %d, want %d", got, tt.wantCode)
			}
		})
	}
}

func TestAuthMiddleware_SetsTenantID(t *testing.T) {
	lookup := &mockTenantLookup{validKeys: map[string]string{"k1": "t1"}}
	r, gotTenant := authRouter(lookup, nil)

	doAuth(r, "Bearer k1")

	if *gotTenant != "t1" {
		t.Fatalf("expected tenant_id=t1, got %q", *gotTenant)
	}
}

func TestAuthMiddleware_RejectionTakesTimingFloor(t *testing.T) {
	lookup := &mockTenantLookup{}
	r, _ := authRouter(lookup, nil)

	start := time.Now()
	doAuth(r, "Bearer nope")

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("rejection returned after %v", elapsed)
	}
}

func TestAuthMiddleware_LockoutAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookup := &mockTenantLookup{validKeys: map[string]string{"good-key": "t1"}}
	r, _ := authRouter(lookup, middleware.NewLockout(ctx, quietLogger()))

	for i := range 5 {
		if got := doAuth(r, "Bearer bad-key"); got != http.StatusUnauthorized {
			t.Fatalf("attempt %d: got %d, want 401", i, got)
		}
	}

	before := lookup.calls.Load()
	if got := doAuth(r, "Bearer bad-key"); got != http.StatusTooManyRequests {
		t.Fatalf("locked key: got %d, want 429", got)
	}
	if lookup.calls.Load() != before {
		t.Error("locked key must not reach the tenant lookup")
	}

	if got := doAuth(r, "Bearer good-key"); got != http.StatusOK {
		t.Fatalf("other keys unaffected: got %d", got)
	}
}

func TestLockout_SucceedResets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := middleware.NewLockout(ctx, quietLogger())
	for range 4 {
		l.Fail("k")
	}
	l.Succeed("k")
	l.Fail("k")

	if l.Blocked("k") {
		t.Fatal("key should not be blocked after a successful login reset the count")
	}

	for range 4 {
		l.Fail("k")
	}
	if !l.Blocked("k") {
		t.Fatal("key should be blocked after five failures")
	}
}

func TestStaticTenant(t *testing.T) {
	var got string
	r := gin.New()
	r.Use(middleware.StaticTenant("local"))
	r.GET("/test", func(c *gin.Context) {
		got = c.GetString(middleware.TenantKey)
		c.Status(http.StatusOK)
	})

	if code := doAuth(r, ""); code != http.StatusOK {
		t.Fatalf("got %d", code)
	}
	if got != "local" {
		t.Fatalf("tenant = %q", got)
	}
}

func TestCachedTenantLookup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inner := &mockTenantLookup{validKeys: map[string]string{"k1": "t1"}}
	cache := middleware.NewCachedTenantLookup(ctx, inner)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tid, err := cache.GetTenantByAPIKey(ctx, "k1"); err != nil || tid != "t1" {
				t.Errorf("got %q, %v", tid, err)
			}
		}()
	}
	wg.Wait()

	if _, err := cache.GetTenantByAPIKey(ctx, "bad"); err == nil {
		t.Fatal("expected error for unknown key")
	}
	if _, err := cache.GetTenantByAPIKey(ctx, "bad"); err == nil {
		t.Fatal("expected cached error for unknown key")
	}

	// Concurrent misses may or may not coalesce, but every later hit is cached.
	calls := inner.calls.Load()
	if calls > 11 {
		t.Fatalf("inner lookup called %d times", calls)
	}

	_, _ = cache.GetTenantByAPIKey(ctx, "k1")
	_, _ = cache.GetTenantByAPIKey(ctx, "bad")
	if inner.calls.Load() != calls {
		t.Error("cached keys must not reach the inner lookup")
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"abc123", ""},
		{"", ""},
		{"Bearer ", ""},
		{"bearer abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tt.header != "" {
				c.Request.Header.Set("Authorization", tt.header)
			}
			if got := middleware.ExtractBearerToken(c); got != tt.want {
				t.Errorf("ExtractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

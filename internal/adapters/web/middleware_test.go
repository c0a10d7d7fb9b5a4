package web

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRequestIDRejectsUnsafeValues(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("safe id replaced: %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "<script>" || seen == "" {
		t.Errorf("unsafe id accepted: %q", seen)
	}
}

func TestCORSOnlyAllowsListedOrigins(t *testing.T) {
	h := CORS([]string{"https://till.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://till.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://till.example" {
		t.Error("listed origin not allowed")
	}

	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin allowed")
	}
}

func TestLoginLimiterPurgesIdleClients(t *testing.T) {
	l := newLoginLimiter(1)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.allow("10.0.0.1") {
		t.Fatal("first attempt rejected")
	}
	if l.allow("10.0.0.1") {
		t.Fatal("second attempt within the minute allowed")
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("other client limited")
	}

	now = now.Add(limiterIdleTTL + time.Minute)
	l.purge()
	if len(l.visitors) != 0 {
		t.Errorf("idle clients kept: %d", len(l.visitors))
	}
}

func TestLoginLimiterDisabled(t *testing.T) {
	l := newLoginLimiter(0)
	for i := 0; i < 100; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("attempt %d rejected with limiting disabled", i)
		}
	}
}

func TestRedisSessionStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	ctx := testContext(t)

	store := NewRedisSessionStore(rdb)
	id := "test-" + time.Now().Format("150405.000000000")
	if revoked, err := store.IsRevoked(ctx, id); err != nil || revoked {
		t.Fatalf("fresh id: revoked=%v err=%v", revoked, err)
	}
	if err := store.Revoke(ctx, id, time.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if revoked, err := store.IsRevoked(ctx, id); err != nil || !revoked {
		t.Fatalf("after revoke: revoked=%v err=%v", revoked, err)
	}
}

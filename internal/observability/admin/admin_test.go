package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	logx "remindbot/pkg/logx"
)

func TestHandlerEndpoints(t *testing.T) {
	t.Parallel()
	var gotLimit int
	s := New(Config{Token: "s3cret"}, Sources{
		Status: func() any { return map[string]int{"jobs": 3} },
		Deliveries: func(_ context.Context, limit int) (any, error) {
			gotLimit = limit
			return []string{"a", "b"}, nil
		},
	}, logx.Nop())
	h := s.Handler(s.cfg)

	cases := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{"healthz needs no token", "/healthz", "", http.StatusOK},
		{"status without token", "/status", "", http.StatusUnauthorized},
		{"status with query token", "/status?token=s3cret", "", http.StatusOK},
		{"status with bearer", "/status", "s3cret", http.StatusOK},
		{"status wrong token", "/status?token=nope", "", http.StatusUnauthorized},
		{"deliveries bad limit", "/deliveries?limit=x", "s3cret", http.StatusBadRequest},
		{"pprof disabled", "/debug/pprof/", "s3cret", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.bearer != "" {
			req.Header.Set("Authorization", "Bearer "+tc.bearer)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: code=%d want %d", tc.name, rec.Code, tc.want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/deliveries?limit=5000", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("deliveries code=%d", rec.Code)
	}
	if gotLimit != maxDeliveryLimit {
		t.Fatalf("limit=%d, want clamp to %d", gotLimit, maxDeliveryLimit)
	}
	var out []string
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil || len(out) != 2 {
		t.Fatalf("body=%q err=%v", rec.Body.String(), err)
	}
}

func TestHandlerMissingSourcesAndErrors(t *testing.T) {
	t.Parallel()
	s := New(Config{}, Sources{}, logx.Nop())
	rec := httptest.NewRecorder()
	s.Handler(s.cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code=%d", rec.Code)
	}

	s = New(Config{}, Sources{Deliveries: func(context.Context, int) (any, error) { return nil, errors.New("db gone") }}, logx.Nop())
	rec = httptest.NewRecorder()
	s.Handler(s.cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deliveries", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	cases := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:80":   true,
		"[::1]:6060":     true,
		":6060":          false,
		"0.0.0.0:6060":   false,
		"10.0.0.1:6060":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q)=%v want %v", addr, got, want)
		}
	}
}

func TestReconfigureStartStop(t *testing.T) {
	s := New(Config{}, Sources{}, logx.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	t.Cleanup(func() { s.Stop(context.Background()) })

	s.Reconfigure(ctx, Config{Enabled: true, Addr: "127.0.0.1:0"})
	addr := waitAddr(t, s)

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("code=%d", resp.StatusCode)
	}

	s.Reconfigure(ctx, Config{Enabled: false})
	if got := s.Addr(); got != "" {
		t.Fatalf("still serving at %s", got)
	}
}

func waitAddr(t *testing.T, s *Service) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if a := s.Addr(); a != "" {
			return a
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("admin server did not start")
	return ""
}

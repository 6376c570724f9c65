package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_AppliesDefaultHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Options{
		BaseURL:        srv.URL,
		UserAgent:      "tiga/8.3.1 (iPhone)",
		AcceptLanguage: "zh-CN,zh;q=0.9",
		Headers:        map[string]string{"X-Custom": "v1"},
		Timeout:        2 * time.Second,
	})

	if _, err := client.R().Get("/"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Get("User-Agent") != "tiga/8.3.1 (iPhone)" {
		t.Fatalf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Accept-Language") != "zh-CN,zh;q=0.9" {
		t.Fatalf("Accept-Language = %q", got.Get("Accept-Language"))
	}
	if got.Get("X-Custom") != "v1" {
		t.Fatalf("X-Custom = %q", got.Get("X-Custom"))
	}
	if got.Get("Connection") != "keep-alive" {
		t.Fatalf("Connection = %q", got.Get("Connection"))
	}
}

func TestNew_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Options{
		BaseURL:      srv.URL,
		Timeout:      2 * time.Second,
		RetryTotal:   3,
		RetryBackoff: time.Millisecond,
	})

	res, err := client.R().Get("/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.StatusCode() != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode())
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestNew_NoRetryOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := New(Options{
		BaseURL:      srv.URL,
		Timeout:      2 * time.Second,
		RetryTotal:   3,
		RetryBackoff: time.Millisecond,
	})

	res, err := client.R().Get("/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if res.StatusCode() != http.StatusForbidden {
		t.Fatalf("status = %d", res.StatusCode())
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("4xx must not retry; attempts = %d", n)
	}
}

func TestNew_ZeroDelayMaxSkipsThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Options{BaseURL: srv.URL, Timeout: 2 * time.Second})

	start := time.Now()
	if _, err := client.R().Get("/"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("request unexpectedly slow (%v); throttle should be off", elapsed)
	}
}

func Test_throttle_Bounds(t *testing.T) {
	start := time.Now()
	if err := throttle(context.Background(), 10*time.Millisecond, 30*time.Millisecond); err != nil {
		t.Fatalf("throttle: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 10*time.Millisecond {
		t.Fatalf("slept %v; below lower bound", elapsed)
	}
}

func Test_throttle_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := throttle(ctx, time.Second, 2*time.Second); err == nil {
		t.Fatalf("expected context error")
	}
}

func Test_throttle_ZeroDuration(t *testing.T) {
	if err := throttle(context.Background(), 0, 0); err != nil {
		t.Fatalf("throttle: %v", err)
	}
}

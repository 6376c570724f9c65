package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func serve(r *gin.Engine, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/probe", func(c *gin.Context) {
		if v, ok := c.Get(requestIDKey); !ok || v == "" {
			t.Errorf("request id missing from context")
		}
		c.Status(http.StatusOK)
	})

	// absent header -> a fresh id is generated and echoed back
	w := serve(r, http.MethodGet, "/probe", nil)
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated %s header", requestIDHeader)
	}

	// caller-supplied id wins, regardless of header casing
	w = serve(r, http.MethodGet, "/probe", map[string]string{strings.ToLower(requestIDHeader): "run-42"})
	if got := w.Header().Get(requestIDHeader); got != "run-42" {
		t.Fatalf("request id = %q; want run-42", got)
	}
}

func TestLogger_LevelByOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.GET("/fine", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/broken", func(c *gin.Context) {
		_ = c.Error(errors.New("query exploded"))
		c.Status(http.StatusBadRequest)
	})

	serve(r, http.MethodGet, "/fine", nil)
	serve(r, http.MethodGet, "/nowhere", nil) // unmatched route -> 404 warn, raw path in log
	serve(r, http.MethodGet, "/broken", nil)  // collected gin error -> error level

	logs := buf.String()
	if !strings.Contains(logs, `"level":"info"`) || !strings.Contains(logs, `"path":"/fine"`) {
		t.Fatalf("missing info log for /fine:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"path":"/nowhere"`) {
		t.Fatalf("missing warn log with raw-path fallback:\n%s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) || !strings.Contains(logs, "query exploded") {
		t.Fatalf("missing error log for collected errors:\n%s", logs)
	}
}

func TestRecovery_JSONBodyAndStackLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("scrape state corrupted") })

	w := serve(r, http.MethodGet, "/boom", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] == "" {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Fatalf("panic not logged:\n%s", buf.String())
	}
}

func TestRecovery_PanicAfterWriteSkipsJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger(), Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("too late")
	})

	w := serve(r, http.MethodGet, "/late", nil)
	// the response was already flushed; no JSON error body may be appended
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("JSON error body written after response flush: %q", w.Body.String())
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// without Logger() the fallback carries no request fields
	buf := captureLogger(t)
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("bare")
		c.Status(http.StatusOK)
	})
	serve(r, http.MethodGet, "/x", nil)
	if strings.Contains(buf.String(), `"request_id"`) {
		t.Fatalf("fallback logger carries request fields:\n%s", buf.String())
	}

	// with Logger() the request-scoped logger carries the correlation id
	buf2 := captureLogger(t)
	r2 := gin.New()
	r2.Use(RequestID(), Logger())
	r2.GET("/x", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("scoped")
		c.Status(http.StatusOK)
	})
	serve(r2, http.MethodGet, "/x", nil)
	if !strings.Contains(buf2.String(), `"request_id"`) {
		t.Fatalf("request-scoped logger missing request_id:\n%s", buf2.String())
	}
}

func Test_truncate(t *testing.T) {
	if got := truncate("date=2026-03-01", 100); got != "date=2026-03-01" {
		t.Fatalf("short input changed: %q", got)
	}
	if got := truncate("abcdefgh", 5); got != "abcde…" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 0); got != "abc" {
		t.Fatalf("max<=0 must disable truncation, got %q", got)
	}
	if asString(42) != "" || asString("id") != "id" {
		t.Fatalf("asString conversions wrong")
	}
}

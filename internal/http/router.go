// Package httpapi wires the HTTP transport (Gin) to the dashboard handlers
// and middleware. It centralizes cross-cutting concerns such as tracing,
// correlation IDs, logging, panic recovery, metrics, compression, CORS,
// security headers, authentication, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - The dashboard is strictly read-only; every route is a GET
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-activity-scraper/internal/config"
	"github.com/tbourn/go-activity-scraper/internal/http/handlers"
	"github.com/tbourn/go-activity-scraper/internal/http/middleware"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter (requests are GET-only; the cap is belt-and-braces)
//  6. Metrics
//  7. Rate limiter (per client IP)
//  8. Gzip compression (board payloads compress well)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB)
	r.Use(limitBody(64 << 10))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per client IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	// 8) Compression; /metrics is already served above the gzip layer
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 9) CORS posture (safe defaults: allow all if none configured). Origin
	// matching and the ACAO/Vary response headers are the library's job; the
	// only extra layer is the allow-all wildcard for Origin-less requests
	// (curl, load-balancer health checks), which cors.New skips entirely.
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			if c.GetHeader("Origin") == "" {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			}
			c.Next()
		})
	}
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))

	// Security headers (HSTS is left to the proxy that terminates TLS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(db)

	// Public API. Basic auth is enabled only when both credentials are
	// configured; an unset pair leaves the dashboard open (dev setups).
	api := r.Group("/api/v1")
	if cfg.WebUsername != "" && cfg.WebPassword != "" {
		api.Use(gin.BasicAuth(gin.Accounts{cfg.WebUsername: cfg.WebPassword}))
	}
	{
		api.GET("/summary", h.Summary)
		api.GET("/tiga/activities", h.TigaActivities)
		api.GET("/tiga/activities/:id", h.TigaActivity)
		api.GET("/tiga/trends", h.TigaTrends)
		api.GET("/gaia/activities", h.GaiaActivities)
		api.GET("/gaia/activities/:id", h.GaiaActivity)
		api.GET("/gaia/trends", h.GaiaTrends)
	}
}

// corsConfig builds the shared CORS policy: GET-only, no credentials, and
// either an explicit allowlist or allow-all when none is configured.
func corsConfig(allowedOrigins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false, // must remain false with AllowAllOrigins
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = allowedOrigins
	}
	return c
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader; oversized bodies error on downstream reads.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

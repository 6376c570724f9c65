// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// scrape pipeline (timeouts, retries, throttling delays, schedule), both
// platform adapters, the SQLite store, the dashboard server, and
// observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the dashboard.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TigaConfig holds the Tiga platform endpoint, auth/device identifiers, and
// the two category IDs its listing API is partitioned by.
type TigaConfig struct {
	BaseURL        string // TIGA_BASE_URL
	UserAgent      string // TIGA_USER_AGENT (also the source of the "version" form field)
	AcceptLanguage string // TIGA_ACCEPT_LANGUAGE

	DomesticCategoryID string // TIGA_DOMESTIC_CATEGORY_ID
	OverseasCategoryID string // TIGA_OVERSEAS_CATEGORY_ID

	CityID         string // TIGA_CITY_ID
	Device         string // TIGA_DEVICE
	DeviceUUToken  string // TIGA_DEVICE_UU_TOKEN
	Channel        string // TIGA_CHANNEL
	Platform       string // TIGA_PLATFORM
	SysVersion     string // TIGA_SYS_VERSION
	RegistrationID string // TIGA_REGISTRATION_ID
	Token          string // TIGA_TOKEN
}

// GaiaConfig holds the Gaia platform endpoint and the catalog codes its
// listing API is partitioned by.
type GaiaConfig struct {
	BaseURL        string   // GAIA_BASE_URL
	UserAgent      string   // GAIA_USER_AGENT
	AcceptLanguage string   // GAIA_ACCEPT_LANGUAGE
	Catalogs       []string // GAIA_CATALOGS (CSV)
	PageSize       int      // GAIA_PAGE_SIZE
}

// ScrapeConfig groups the settings shared by both platform pipelines.
type ScrapeConfig struct {
	Interval     time.Duration // SCHEDULE_INTERVAL_MINUTES
	MaxPages     int           // MAX_PAGES (0 = unlimited; operator safety valve)
	Timeout      time.Duration // TIMEOUT_SECONDS per outbound request
	RetryTotal   int           // RETRY_TOTAL transport-level retries
	RetryBackoff time.Duration // RETRY_BACKOFF_SECONDS base backoff
	DelayMin     time.Duration // DELAY_MIN_SECONDS pre-request jitter lower bound
	DelayMax     time.Duration // DELAY_MAX_SECONDS pre-request jitter upper bound
}

// Config holds all configuration values for the application.
type Config struct {
	// Server (dashboard)
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Store
	DBPath string // SQLite path

	// Dashboard auth (open when both empty)
	WebUsername string
	WebPassword string

	// Rate limiting (dashboard)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Scraping
	Scrape ScrapeConfig
	Tiga   TigaConfig
	Gaia   GaiaConfig

	// Web protection
	CORS CORSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result. Platform category/catalog
// identifiers are not required here; the scrape command validates the
// presence of whatever the selected platforms need before any run begins.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Store
		DBPath: getenv("DB_PATH", "activities.db"),

		// Dashboard auth
		WebUsername: getenv("WEB_USERNAME", ""),
		WebPassword: getenv("WEB_PASSWORD", ""),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Scraping
		Scrape: ScrapeConfig{
			Interval:     time.Duration(getint("SCHEDULE_INTERVAL_MINUTES", 30)) * time.Minute,
			MaxPages:     getint("MAX_PAGES", 0),
			Timeout:      getsecs("TIMEOUT_SECONDS", 15*time.Second),
			RetryTotal:   getint("RETRY_TOTAL", 3),
			RetryBackoff: getsecs("RETRY_BACKOFF_SECONDS", 500*time.Millisecond),
			DelayMin:     getsecs("DELAY_MIN_SECONDS", 0),
			DelayMax:     getsecs("DELAY_MAX_SECONDS", 0),
		},
		Tiga: TigaConfig{
			BaseURL:            getenv("TIGA_BASE_URL", ""),
			UserAgent:          getenv("TIGA_USER_AGENT", ""),
			AcceptLanguage:     getenv("TIGA_ACCEPT_LANGUAGE", ""),
			DomesticCategoryID: getenv("TIGA_DOMESTIC_CATEGORY_ID", ""),
			OverseasCategoryID: getenv("TIGA_OVERSEAS_CATEGORY_ID", ""),
			CityID:             getenv("TIGA_CITY_ID", ""),
			Device:             getenv("TIGA_DEVICE", ""),
			DeviceUUToken:      getenv("TIGA_DEVICE_UU_TOKEN", ""),
			Channel:            getenv("TIGA_CHANNEL", "appstore"),
			Platform:           getenv("TIGA_PLATFORM", "1"),
			SysVersion:         getenv("TIGA_SYS_VERSION", ""),
			RegistrationID:     getenv("TIGA_REGISTRATION_ID", ""),
			Token:              getenv("TIGA_TOKEN", ""),
		},
		Gaia: GaiaConfig{
			BaseURL:        getenv("GAIA_BASE_URL", ""),
			UserAgent:      getenv("GAIA_USER_AGENT", ""),
			AcceptLanguage: getenv("GAIA_ACCEPT_LANGUAGE", ""),
			Catalogs:       splitCSV(getenv("GAIA_CATALOGS", "E,L,SW,S,WE,SY")),
			PageSize:       getint("GAIA_PAGE_SIZE", 20),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-activity-scraper"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Scrape.Interval <= 0 {
		return cfg, errors.New("SCHEDULE_INTERVAL_MINUTES must be > 0")
	}
	if cfg.Scrape.MaxPages < 0 {
		return cfg, errors.New("MAX_PAGES must be >= 0")
	}
	if cfg.Scrape.Timeout <= 0 {
		return cfg, errors.New("TIMEOUT_SECONDS must be > 0")
	}
	if cfg.Scrape.RetryTotal < 0 {
		return cfg, errors.New("RETRY_TOTAL must be >= 0")
	}
	if cfg.Scrape.RetryBackoff < 0 {
		return cfg, errors.New("RETRY_BACKOFF_SECONDS must be >= 0")
	}
	if cfg.Scrape.DelayMin < 0 || cfg.Scrape.DelayMax < 0 {
		return cfg, errors.New("delay bounds must be >= 0")
	}
	if cfg.Scrape.DelayMax > 0 && cfg.Scrape.DelayMin > cfg.Scrape.DelayMax {
		return cfg, errors.New("DELAY_MIN_SECONDS must not exceed DELAY_MAX_SECONDS")
	}
	if cfg.Gaia.PageSize < 1 {
		return cfg, errors.New("GAIA_PAGE_SIZE must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getsecs parses a fractional seconds value (e.g. "0.5", "15") into a
// Duration. The deployment configures these knobs in seconds, so the env
// surface keeps that unit.
func getsecs(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

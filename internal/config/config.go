// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the store path, platform credentials, captcha secrets, and
// observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
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

	// Platform credentials (§6)
	BotToken   string  // BOT_TOKEN
	AdminGroup int64   // ADMIN_GROUP_ID
	AdminIDs   []int64 // ADMIN_IDS, comma-separated; AdminIDs[0] is the primary admin
	WorkerURL  string  // WORKER_URL, base URL used to build the /verify link

	// Captcha providers
	TurnstileSiteKey   string
	TurnstileSecretKey string
	RecaptchaSiteKey   string
	RecaptchaSecretKey string

	// Config store read-through cache (§4.1)
	ConfigCacheTTL time.Duration // ~60s

	// Soft in-process lock map (§5)
	TopicCreateLockTTL time.Duration // 5s
	InboxLockTTL       time.Duration // 3s
	UpdateDedupTTL     time.Duration // webhook update_id dedup window (SPEC_FULL supplement)

	// Violation accrual default threshold, overridable via the config store
	// under "block_threshold".
	DefaultBlockThreshold int

	// HTTP-edge rate limiting (distinct from the domain lock map)
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Metrics: collectors always register; the /metrics route itself is only
	// mounted when this is true, so by default the HTTP surface is the four
	// routes of §6.
	MetricsEnabled bool

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
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		DBPath: getenv("DB_PATH", "relay.db"),

		BotToken:   getenv("BOT_TOKEN", ""),
		AdminGroup: getint64("ADMIN_GROUP_ID", 0),
		AdminIDs:   splitInt64CSV(getenv("ADMIN_IDS", "")),
		WorkerURL:  strings.TrimRight(getenv("WORKER_URL", ""), "/"),

		TurnstileSiteKey:   getenv("TURNSTILE_SITE_KEY", ""),
		TurnstileSecretKey: getenv("TURNSTILE_SECRET_KEY", ""),
		RecaptchaSiteKey:   getenv("RECAPTCHA_SITE_KEY", ""),
		RecaptchaSecretKey: getenv("RECAPTCHA_SECRET_KEY", ""),

		ConfigCacheTTL: getdur("CONFIG_CACHE_TTL", 60*time.Second),

		TopicCreateLockTTL: getdur("TOPIC_CREATE_LOCK_TTL", 5*time.Second),
		InboxLockTTL:       getdur("INBOX_LOCK_TTL", 3*time.Second),
		UpdateDedupTTL:     getdur("UPDATE_DEDUP_TTL", 120*time.Second),

		DefaultBlockThreshold: getint("DEFAULT_BLOCK_THRESHOLD", 5),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		MetricsEnabled: getbool("METRICS_ENABLED", false),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "forum-relay-bot"),
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
	if strings.TrimSpace(cfg.BotToken) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if cfg.AdminGroup == 0 {
		return cfg, errors.New("ADMIN_GROUP_ID must not be empty")
	}
	if cfg.ConfigCacheTTL <= 0 {
		return cfg, errors.New("CONFIG_CACHE_TTL must be > 0")
	}
	if cfg.DefaultBlockThreshold < 1 {
		return cfg, errors.New("DEFAULT_BLOCK_THRESHOLD must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// IsAdmin reports whether userID is listed in ADMIN_IDS. The `authorized_admins`
// store-backed JSON list is consulted separately by the admission state
// machine, since it is mutable at runtime through the Admin Console (§4.8).
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsPrimaryAdmin reports whether userID is the first entry of ADMIN_IDS, the
// only identity granted access to the Admin Console (§4.3).
func (c Config) IsPrimaryAdmin(userID int64) bool {
	return len(c.AdminIDs) > 0 && c.AdminIDs[0] == userID
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

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
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

func splitInt64CSV(s string) []int64 {
	raw := splitCSV(s)
	out := make([]int64, 0, len(raw))
	for _, p := range raw {
		if v, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

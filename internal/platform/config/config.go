package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr               string
	DatabaseURL        string
	JWTSecret          string
	DataEncryptionKey  string
	Environment        string
	MigrationsDir      string
	RunMigrations      bool
	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	RateLimitPerMinute int
	BatchConcurrency   int
	StrictYtdYear      bool
	DefaultTraceLevel  string
	EngineTimeout      time.Duration
	MetricsEnabled     bool
	YtdDBPath          string

	// malformed names variables that were set but did not parse; their
	// defaults were used and Validate reports them.
	malformed []string
}

// Load reads .env files (without overriding the real environment) and then
// the environment itself.
func Load(envFiles ...string) Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			slog.Warn("env file not loaded", "file", file, "err", err)
		}
	}

	var env reader
	cfg := Config{
		Addr:               env.str("APP_ADDR", ":"+env.str("PORT", "8080")),
		DatabaseURL:        env.str("DATABASE_URL", ""),
		JWTSecret:          env.str("JWT_SECRET", ""),
		DataEncryptionKey:  env.str("DATA_ENCRYPTION_KEY", ""),
		Environment:        env.str("APP_ENV", "development"),
		MigrationsDir:      env.str("MIGRATIONS_DIR", "migrations"),
		RunMigrations:      parsed(&env, "RUN_MIGRATIONS", true, strconv.ParseBool),
		CORSAllowedOrigins: env.list("CORS_ALLOWED_ORIGINS"),
		MaxBodyBytes:       parsed(&env, "MAX_BODY_BYTES", int64(1<<20), parseInt64),
		RateLimitPerMinute: parsed(&env, "RATE_LIMIT_PER_MINUTE", 120, strconv.Atoi),
		BatchConcurrency:   parsed(&env, "BATCH_CONCURRENCY", 8, strconv.Atoi),
		StrictYtdYear:      parsed(&env, "STRICT_YTD_YEAR", false, strconv.ParseBool),
		DefaultTraceLevel:  strings.ToUpper(env.str("DEFAULT_TRACE_LEVEL", "AUDIT")),
		EngineTimeout:      parsed(&env, "ENGINE_TIMEOUT", 10*time.Second, time.ParseDuration),
		MetricsEnabled:     parsed(&env, "METRICS_ENABLED", true, strconv.ParseBool),
		YtdDBPath:          env.str("PAYCALC_YTD_DB", ""),
	}
	cfg.malformed = env.malformed
	return cfg
}

type reader struct {
	malformed []string
}

func (r *reader) str(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsed[T any](r *reader, key string, fallback T, parse func(string) (T, error)) T {
	raw := r.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := parse(raw)
	if err != nil {
		slog.Warn("config value ignored", "key", key, "value", raw, "err", err)
		r.malformed = append(r.malformed, key)
		return fallback
	}
	return value
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// Validate reports every problem at once so a misconfigured deployment is
// fixed in one pass.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	for _, key := range c.malformed {
		errs = append(errs, fmt.Errorf("%s is malformed", key))
	}
	check(strings.TrimSpace(c.DatabaseURL) != "", "DATABASE_URL is required")
	check(strings.TrimSpace(c.JWTSecret) != "", "JWT_SECRET is required")
	check(c.Environment != "production" || strings.TrimSpace(c.DataEncryptionKey) != "",
		"DATA_ENCRYPTION_KEY must be set in production to seal stored payslips")
	check(c.MaxBodyBytes >= 1024, "MAX_BODY_BYTES must be at least 1024, got %d", c.MaxBodyBytes)
	check(c.RateLimitPerMinute > 0, "RATE_LIMIT_PER_MINUTE must be positive")
	check(c.BatchConcurrency > 0, "BATCH_CONCURRENCY must be positive")
	switch c.DefaultTraceLevel {
	case "NONE", "AUDIT", "DEBUG":
	default:
		errs = append(errs, fmt.Errorf("DEFAULT_TRACE_LEVEL must be NONE, AUDIT or DEBUG, got %q", c.DefaultTraceLevel))
	}
	check(c.EngineTimeout > 0, "ENGINE_TIMEOUT must be positive")
	return errors.Join(errs...)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ADDR", "PORT", "BATCH_CONCURRENCY", "DEFAULT_TRACE_LEVEL", "ENGINE_TIMEOUT", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.Addr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Addr)
	}
	if cfg.BatchConcurrency != 8 {
		t.Fatalf("expected batch concurrency 8, got %d", cfg.BatchConcurrency)
	}
	if cfg.DefaultTraceLevel != "AUDIT" {
		t.Fatalf("expected AUDIT trace level, got %q", cfg.DefaultTraceLevel)
	}
	if cfg.EngineTimeout != 10*time.Second {
		t.Fatalf("unexpected engine timeout %s", cfg.EngineTimeout)
	}
	if cfg.CORSAllowedOrigins != nil {
		t.Fatalf("expected no origins, got %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	content := "PORT=9090\nBATCH_CONCURRENCY=3\nCORS_ALLOWED_ORIGINS=https://a.example, https://b.example\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APP_ADDR", "")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	t.Setenv("BATCH_CONCURRENCY", "5")
	// godotenv.Load sets variables for the rest of the process.
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("CORS_ALLOWED_ORIGINS")
	})
	os.Unsetenv("PORT")
	os.Unsetenv("CORS_ALLOWED_ORIGINS")

	cfg := Load(file)
	if cfg.Addr != ":9090" {
		t.Fatalf("expected port from env file, got %q", cfg.Addr)
	}
	if cfg.BatchConcurrency != 5 {
		t.Fatalf("real environment must win, got %d", cfg.BatchConcurrency)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		DatabaseURL:        "postgres://localhost/pay",
		JWTSecret:          "secret",
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 10,
		BatchConcurrency:   2,
		DefaultTraceLevel:  "AUDIT",
		EngineTimeout:      time.Second,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(c *Config){
		"missing database":  func(c *Config) { c.DatabaseURL = "" },
		"missing secret":    func(c *Config) { c.JWTSecret = " " },
		"production no key": func(c *Config) { c.Environment = "production" },
		"small body":        func(c *Config) { c.MaxBodyBytes = 10 },
		"zero concurrency":  func(c *Config) { c.BatchConcurrency = 0 },
		"bad trace level":   func(c *Config) { c.DefaultTraceLevel = "VERBOSE" },
		"zero timeout":      func(c *Config) { c.EngineTimeout = 0 },
	}
	for name, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestMalformedValuesFallBackAndFailValidation(t *testing.T) {
	t.Setenv("BATCH_CONCURRENCY", "many")
	t.Setenv("ENGINE_TIMEOUT", "10")
	t.Setenv("DATABASE_URL", "postgres://localhost/pay")
	t.Setenv("JWT_SECRET", "secret")

	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))
	if cfg.BatchConcurrency != 8 || cfg.EngineTimeout != 10*time.Second {
		t.Fatalf("expected defaults, got %d %s", cfg.BatchConcurrency, cfg.EngineTimeout)
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, key := range []string{"BATCH_CONCURRENCY", "ENGINE_TIMEOUT"} {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in %q", key, err)
		}
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	err := Config{DefaultTraceLevel: "AUDIT", EngineTimeout: time.Second}.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"DATABASE_URL", "JWT_SECRET", "MAX_BODY_BYTES", "RATE_LIMIT_PER_MINUTE", "BATCH_CONCURRENCY"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err)
		}
	}
}

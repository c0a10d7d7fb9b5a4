package config

import (
	"strings"
	"testing"
	"time"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for _, k := range []string{
		"APP_ENV", "SERVER_PORT", "ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "DATABASE_URL",
		"DB_MAX_CONNS", "JWT_SECRET", "SESSION_TTL", "REQUEST_TIMEOUT", "LOGIN_RATE_PER_MINUTE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "TIMEZONE",
	} {
		t.Setenv(k, "")
	}
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"DATABASE_URL": "postgres://localhost/pos"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if !cfg.IsDevelopment() {
		t.Errorf("expected development by default")
	}
	if cfg.Auth.SessionTTL != 24*time.Hour {
		t.Errorf("expected 24h session, got %s", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.JWTSecret == "" {
		t.Errorf("development should fall back to a local secret")
	}
	if cfg.Location.String() != "UTC" {
		t.Errorf("expected UTC, got %s", cfg.Location)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("redis should be disabled by default")
	}
}

func TestLoad_ProductionRequiresStrongSecret(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_ENV":      "production",
		"DATABASE_URL": "postgres://localhost/pos",
		"JWT_SECRET":   "short",
	})

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Fatalf("expected JWT_SECRET error, got %v", err)
	}
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	setEnv(t, map[string]string{
		"DB_MAX_CONNS":    "zero",
		"REQUEST_TIMEOUT": "soon",
		"TIMEZONE":        "Mars/Olympus",
	})

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"DATABASE_URL", "DB_MAX_CONNS", "REQUEST_TIMEOUT", "TIMEZONE"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_AllowedOrigins(t *testing.T) {
	setEnv(t, map[string]string{
		"DATABASE_URL":    "postgres://localhost/pos",
		"ALLOWED_ORIGINS": " http://a.test, ,http://b.test ",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
}

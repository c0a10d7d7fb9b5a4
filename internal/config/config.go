package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Postgres PostgresConfig
	Auth     AuthConfig
	Redis    RedisConfig
	// Location is the calendar used for receipt and delivery numbering.
	Location *time.Location
}

type ServerConfig struct {
	AppEnv         string
	Port           string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type PostgresConfig struct {
	URL      string
	MaxConns int32
}

type AuthConfig struct {
	JWTSecret          string
	SessionTTL         time.Duration
	LoginRatePerMinute int
}

// RedisConfig is optional. An empty Addr disables session revocation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IsDevelopment reports whether internal error detail may be returned to clients.
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == EnvDevelopment
}

// Load reads the configuration from the environment. Callers load .env first.
func Load() (*Config, error) {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	cfg := &Config{
		Server: ServerConfig{
			AppEnv:         strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
			Port:           getEnv("SERVER_PORT", "8080"),
			AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", nil),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
	}

	if cfg.Server.AppEnv != EnvDevelopment && cfg.Server.AppEnv != EnvProduction {
		fail("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, cfg.Server.AppEnv)
	}
	if cfg.Logger.Format != "json" && cfg.Logger.Format != "text" {
		fail("LOG_FORMAT must be json or text, got %q", cfg.Logger.Format)
	}
	if cfg.Postgres.URL == "" {
		fail("DATABASE_URL is required")
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 10)
	if err != nil || maxConns < 1 {
		fail("DB_MAX_CONNS must be a positive integer")
	}
	cfg.Postgres.MaxConns = int32(maxConns)

	if cfg.Auth.SessionTTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil || cfg.Auth.SessionTTL <= 0 {
		fail("SESSION_TTL must be a positive duration")
	}
	if cfg.Server.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 15*time.Second); err != nil || cfg.Server.RequestTimeout <= 0 {
		fail("REQUEST_TIMEOUT must be a positive duration")
	}
	if cfg.Auth.LoginRatePerMinute, err = getEnvInt("LOGIN_RATE_PER_MINUTE", 10); err != nil || cfg.Auth.LoginRatePerMinute < 1 {
		fail("LOGIN_RATE_PER_MINUTE must be a positive integer")
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		fail("REDIS_DB must be an integer")
	}

	switch {
	case cfg.Auth.JWTSecret == "" && cfg.IsDevelopment():
		cfg.Auth.JWTSecret = "development-only-secret-change-me-now"
	case cfg.Auth.JWTSecret == "":
		fail("JWT_SECRET is required")
	case len(cfg.Auth.JWTSecret) < 32 && !cfg.IsDevelopment():
		fail("JWT_SECRET must be at least 32 characters in production")
	}

	tz := getEnv("TIMEZONE", "UTC")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		fail("TIMEZONE %q is not a valid IANA zone", tz)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

func getEnvSlice(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

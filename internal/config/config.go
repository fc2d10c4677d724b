package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort int
	AppEnv     string

	DatabaseDriver string // sqlite, postgres or mongo
	DatabasePath   string // sqlite file
	DatabaseURL    string // postgres DSN
	MongoURI       string
	MongoDatabase  string

	JWTSecret    string
	JWTExpire    time.Duration
	JWTIssuer    string
	BcryptRounds int
	CookieName   string

	CORSOrigins     []string
	RateLimitWindow time.Duration
	RateLimitMax    int
	AuthRateLimit   int
	MaxBodyBytes    int64

	ResetTokenTTL       time.Duration
	MaintenanceSchedule string

	LogLevel  string
	LogFormat string
}

// IsProduction reports whether the app runs with production settings.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load loads configuration from a .env file (when present), environment
// variables, or sets defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current process environment.
func FromEnv() (*Config, error) {
	port, err := getEnvInt("PORT", 5000)
	if err != nil {
		return nil, err
	}
	jwtExpire, err := getEnvDuration("JWT_EXPIRE", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	rounds, err := getEnvInt("BCRYPT_ROUNDS", 12)
	if err != nil {
		return nil, err
	}
	window, err := getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	rateMax, err := getEnvInt("RATE_LIMIT_MAX", 100)
	if err != nil {
		return nil, err
	}
	authMax, err := getEnvInt("AUTH_RATE_LIMIT_MAX", 10)
	if err != nil {
		return nil, err
	}
	maxBody, err := getEnvInt("MAX_BODY_SIZE", 1<<20)
	if err != nil {
		return nil, err
	}
	resetTTL, err := getEnvDuration("RESET_TOKEN_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:          port,
		AppEnv:              getEnv("APP_ENV", "development"),
		DatabaseDriver:      getEnv("DATABASE_DRIVER", "sqlite"),
		DatabasePath:        getEnv("DATABASE_PATH", "./traderlibrary.db"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		MongoURI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:       getEnv("MONGODB_DATABASE", "traderlibrary"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTExpire:           jwtExpire,
		JWTIssuer:           getEnv("JWT_ISSUER", "traderlibrary"),
		BcryptRounds:        rounds,
		CookieName:          getEnv("COOKIE_NAME", "token"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		RateLimitWindow:     window,
		RateLimitMax:        rateMax,
		AuthRateLimit:       authMax,
		MaxBodyBytes:        int64(maxBody),
		ResetTokenTTL:       resetTTL,
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "@every 5m"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres", "mongo":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if c.DatabaseDriver == "postgres" && c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for the postgres driver")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters in production")
	}
	if c.JWTExpire <= 0 {
		return errors.New("JWT_EXPIRE must be positive")
	}
	if c.BcryptRounds < 4 || c.BcryptRounds > 31 {
		return fmt.Errorf("BCRYPT_ROUNDS must be between 4 and 31, got %d", c.BcryptRounds)
	}
	if c.RateLimitMax <= 0 || c.AuthRateLimit <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// getEnvDuration accepts Go durations ("15m") as well as a bare number of
// seconds ("86400").
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpire)
	assert.Equal(t, 12, cfg.BcryptRounds)
	assert.Equal(t, "token", cfg.CookieName)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("JWT_EXPIRE", "3600")
	t.Setenv("CORS_ORIGINS", " https://a.example.com , https://*.example.org ,")
	t.Setenv("BCRYPT_ROUNDS", "10")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.JWTExpire)
	assert.Equal(t, []string{"https://a.example.com", "https://*.example.org"}, cfg.CORSOrigins)
	assert.Equal(t, 10, cfg.BcryptRounds)
}

func TestFromEnvRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "short production secret", env: map[string]string{"JWT_SECRET": "short", "APP_ENV": "production"}},
		{name: "unknown driver", env: map[string]string{"JWT_SECRET": "x", "DATABASE_DRIVER": "oracle"}},
		{name: "postgres without url", env: map[string]string{"JWT_SECRET": "x", "DATABASE_DRIVER": "postgres"}},
		{name: "bad port", env: map[string]string{"JWT_SECRET": "x", "PORT": "eighty"}},
		{name: "bad duration", env: map[string]string{"JWT_SECRET": "x", "JWT_EXPIRE": "soon"}},
		{name: "bcrypt too low", env: map[string]string{"JWT_SECRET": "x", "BCRYPT_ROUNDS": "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

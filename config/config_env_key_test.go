package config

import (
	"testing"
	"time"

	"github.com/slighter12/go-lib/database/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"sslMode": "disable",
			"master": map[string]any{
				"userName": "user",
			},
		},
		"auth": map[string]any{
			"secret":     "",
			"accessTTL":  "5m",
			"bcryptCost": 10,
		},
		"session": map[string]any{
			"keyPrefix": "gateway",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_SSLMODE", want: "postgres.sslMode"},
		{envKey: "POSTGRES_MASTER_USERNAME", want: "postgres.master.userName"},
		{envKey: "AUTH_SECRET", want: "auth.secret"},
		{envKey: "AUTH_ACCESSTTL", want: "auth.accessTTL"},
		{envKey: "SESSION_KEYPREFIX", want: "session.keyPrefix"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{Postgres: &postgres.DBConn{}}

	require.NoError(t, cfg.applyDefaults())
	assert.Equal(t, defaultMaxRequestBodySize, cfg.HTTP.MaxRequestBodySize)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 8760*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, bcrypt.DefaultCost, cfg.Auth.BcryptCost)
	assert.Equal(t, SessionBackendPostgres, cfg.Session.Backend)
	assert.Equal(t, defaultSessionKeyPrefix, cfg.Session.KeyPrefix)
}

func TestApplyDefaults_SessionBackend(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		redis   *RedisConfig
		wantErr bool
	}{
		{name: "redis with address", backend: "Redis", redis: &RedisConfig{Addr: "localhost:6379"}},
		{name: "redis without address", backend: "redis", wantErr: true},
		{name: "unknown backend", backend: "memcached", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Postgres: &postgres.DBConn{}, Redis: tt.redis}
			cfg.Session.Backend = tt.backend

			err := cfg.applyDefaults()
			if tt.wantErr {
				assert.Error(t, err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, SessionBackendRedis, cfg.Session.Backend)
		})
	}
}

func TestApplyDefaults_RequiresPostgres(t *testing.T) {
	cfg := &Config{}

	assert.Error(t, cfg.applyDefaults())
}

package config_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/tendril/internal/config"
	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8082", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 10, cfg.Log.BufferCapacity)
	assert.Equal(t, 32, cfg.State.MaxAttempts)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "memory", cfg.StateStore.Backend)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
addr: ":9000"
write_timeout: 45
log:
  level: debug
  format: json
  buffer_capacity: 3
  flush_interval: 2s
statestore:
  backend: redis
  redis_url: redis://cache:6379/1
`
	path := filepath.Join(dir, "tendril.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, 45*time.Second, cfg.WriteTimeout, "integers are seconds")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Log.BufferCapacity)
	assert.Equal(t, 2*time.Second, cfg.Log.FlushInterval)
	assert.Equal(t, "redis", cfg.StateStore.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.StateStore.RedisURL)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("TENDRIL_ADDR", ":7000")
	t.Setenv("TENDRIL_LOG_LEVEL", "warn")
	t.Setenv("TENDRIL_STATE_MAX_ATTEMPTS", "8")
	t.Setenv("TENDRIL_READ_TIMEOUT", "1m")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 8, cfg.State.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.ReadTimeout)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	t.Setenv("write_timeout", "20")
	t.Setenv("healthcheck_interval", "5s")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 5*time.Second, cfg.ShutdownDelay)

	t.Setenv("TENDRIL_WRITE_TIMEOUT", "30")
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout, "prefixed variable wins")
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("Missing File", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("Bad Values", func(t *testing.T) {
		t.Setenv("TENDRIL_LOG_BUFFER_CAPACITY", "0")
		t.Setenv("TENDRIL_STATESTORE_BACKEND", "etcd")

		_, err := config.Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.buffer_capacity")
		assert.Contains(t, err.Error(), "statestore.backend")
	})

	t.Run("Bad Duration", func(t *testing.T) {
		t.Setenv("TENDRIL_READ_TIMEOUT", "soon")
		_, err := config.Load("")
		assert.Error(t, err)
	})
}

func TestStateConfig_Encryption(t *testing.T) {
	active := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	old := base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210"))

	t.Run("Disabled By Default", func(t *testing.T) {
		cfg, err := config.Load("")
		require.NoError(t, err)
		_, ok, err := cfg.State.Encryption()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Keys From Environment", func(t *testing.T) {
		t.Setenv("TENDRIL_STATE_ENCRYPTION_KEY", active)
		t.Setenv("TENDRIL_STATE_FALLBACK_KEYS", old)

		cfg, err := config.Load("")
		require.NoError(t, err)
		enc, ok, err := cfg.State.Encryption()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, middleware.EncryptionConfig{
			ActiveKey:    []byte("0123456789abcdef0123456789abcdef"),
			FallbackKeys: [][]byte{[]byte("fedcba9876543210fedcba9876543210")},
		}, enc)
	})

	t.Run("Bad Key", func(t *testing.T) {
		t.Setenv("TENDRIL_STATE_ENCRYPTION_KEY", "c2hvcnQ=")
		_, err := config.Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "state.encryption_key")
	})

	t.Run("Fallback Without Active", func(t *testing.T) {
		t.Setenv("TENDRIL_STATE_FALLBACK_KEYS", old)
		_, err := config.Load("")
		assert.Error(t, err)
	})
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      any
		want    time.Duration
		wantErr bool
	}{
		{"10", 10 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{" 5 ", 5 * time.Second, false},
		{"", 0, false},
		{15, 15 * time.Second, false},
		{"-3", 0, true},
		{"later", 0, true},
	}
	for _, tt := range tests {
		got, err := config.ParseDuration(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/aretw0/tendril/pkg/persistence/middleware"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load (TENDRIL_ADDR, TENDRIL_LOG_LEVEL...).
const EnvPrefix = "TENDRIL"

// Config is the runtime configuration of a function process and of the dev state store.
type Config struct {
	Addr          string        `mapstructure:"addr"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	ShutdownDelay time.Duration `mapstructure:"shutdown_delay"`

	Log        LogConfig        `mapstructure:"log"`
	State      StateConfig      `mapstructure:"state"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	StateStore StateStoreConfig `mapstructure:"statestore"`
}

// LogConfig covers the process logger and the per-invocation log shipper.
type LogConfig struct {
	Level          string        `mapstructure:"level"`
	Format         string        `mapstructure:"format"` // text | json
	BufferCapacity int           `mapstructure:"buffer_capacity"`
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	UploadTimeout  time.Duration `mapstructure:"upload_timeout"`
	// Attribute keys masked in shipped logs. Entries may use * wildcards.
	RedactKeys []string `mapstructure:"redact_keys"`
}

// StateConfig tunes the state clients handed to handlers.
type StateConfig struct {
	MaxAttempts        int           `mapstructure:"max_attempts"`
	Timeout            time.Duration `mapstructure:"timeout"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`

	// Base64 AES-256 keys. Values are encrypted client side when EncryptionKey is set.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
}

// Encryption returns the decoded keys. ok is false when encryption is off.
func (c StateConfig) Encryption() (cfg middleware.EncryptionConfig, ok bool, err error) {
	if c.EncryptionKey == "" {
		if len(c.FallbackKeys) > 0 {
			return cfg, false, errors.New("state.fallback_keys requires state.encryption_key")
		}
		return cfg, false, nil
	}
	if cfg.ActiveKey, err = middleware.ParseKey(c.EncryptionKey); err != nil {
		return cfg, false, fmt.Errorf("state.encryption_key: %w", err)
	}
	for i, k := range c.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return cfg, false, fmt.Errorf("state.fallback_keys[%d]: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	return cfg, true, nil
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StateStoreConfig configures `tendril statestore`.
type StateStoreConfig struct {
	Addr     string        `mapstructure:"addr"`
	Backend  string        `mapstructure:"backend"` // memory | redis
	RedisURL string        `mapstructure:"redis_url"`
	Token    string        `mapstructure:"token"`
	TTL      time.Duration `mapstructure:"ttl"`
	Seed     string        `mapstructure:"seed"`
}

// legacyEnv lists unprefixed variable names honored for compatibility with
// existing function deployments.
var legacyEnv = map[string]string{
	"read_timeout":   "read_timeout",
	"write_timeout":  "write_timeout",
	"shutdown_delay": "healthcheck_interval",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8082")
	v.SetDefault("read_timeout", "10s")
	v.SetDefault("write_timeout", "10s")
	v.SetDefault("shutdown_delay", "0s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.buffer_capacity", 10)
	v.SetDefault("log.flush_interval", "0s")
	v.SetDefault("log.upload_timeout", "10s")
	v.SetDefault("log.redact_keys", []string{"password", "*token*", "*secret*"})

	v.SetDefault("state.max_attempts", 32)
	v.SetDefault("state.timeout", "30s")
	v.SetDefault("state.insecure_skip_verify", false)
	v.SetDefault("state.encryption_key", "")
	v.SetDefault("state.fallback_keys", []string{})

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("statestore.addr", ":8090")
	v.SetDefault("statestore.backend", "memory")
	v.SetDefault("statestore.redis_url", "redis://localhost:6379/0")
	v.SetDefault("statestore.token", "")
	v.SetDefault("statestore.ttl", "0s")
	v.SetDefault("statestore.seed", "")
}

// New returns a viper instance with defaults and environment bindings,
// ready for flag bindings and Decode.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		// Prefixed name first so it wins over the legacy one.
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), legacy)
	}
	return v
}

// Load reads defaults, the optional YAML file at path and the environment.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsOrDurationHook,
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Log.BufferCapacity < 1 {
		errs = append(errs, fmt.Errorf("log.buffer_capacity must be positive, got %d", c.Log.BufferCapacity))
	}
	if c.State.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("state.max_attempts must be positive, got %d", c.State.MaxAttempts))
	}
	if _, _, err := c.State.Encryption(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	switch c.StateStore.Backend {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("statestore.backend must be memory or redis, got %q", c.StateStore.Backend))
	}
	return errors.Join(errs...)
}

// ParseDuration accepts a non-negative integer number of seconds or a Go
// duration string ("1m30s").
func ParseDuration(val any) (time.Duration, error) {
	if s, ok := val.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		val = s
	}
	if secs, err := cast.ToInt64E(val); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("negative duration %v", val)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := cast.ToDurationE(val)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %v: %w", val, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %v", val)
	}
	return d, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func secondsOrDurationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType || from == durationType {
		return data, nil
	}
	return ParseDuration(data)
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// casScript writes the value only when the stored version matches ARGV[2].
// New versions come from the counter at KEYS[2], which outlives deleted and
// expired entries. Returns the new version, or -1 on mismatch.
var casScript = backend.NewScript(`
local current = tonumber(redis.call("HGET", KEYS[1], "version") or "0")
if current ~= tonumber(ARGV[2]) then
	return -1
end
local next = redis.call("INCR", KEYS[2])
if next <= current then
	next = current + 1
	redis.call("SET", KEYS[2], next)
end
redis.call("HSET", KEYS[1], "value", ARGV[1], "version", next)
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return next
`)

// Store implements ports.VersionedStore using Redis hashes.
// Each entry is a hash with "value" (JSON) and "version" fields. Versions are
// drawn from a counter shared by every key under the prefix and never expire.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration of entries, refreshed on every write.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for entries.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromURL creates a store from a redis:// or rediss:// URL.
func NewFromURL(url string, opts ...Option) (*Store, error) {
	options, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(options), opts...), nil
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "tendril:state:",
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

// Key returns the redis key holding the entry.
func (s *Store) Key(ns domain.Namespace, key string) string {
	return s.prefix + ns.String() + ":" + key
}

// VersionKey returns the redis key of the version counter.
func (s *Store) VersionKey() string {
	return s.prefix + "__version__"
}

// Get retrieves the entry from Redis.
func (s *Store) Get(ctx context.Context, ns domain.Namespace, key string) (domain.Entry, error) {
	fields, err := s.client.HGetAll(ctx, s.Key(ns, key)).Result()
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	if len(fields) == 0 {
		return domain.Entry{Key: key, Version: domain.NoVersion}, nil
	}

	version, err := strconv.ParseUint(fields["version"], 10, 32)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("failed to parse version of %q: %w", key, err)
	}

	var value any
	if err := json.Unmarshal([]byte(fields["value"]), &value); err != nil {
		return domain.Entry{}, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return domain.Entry{Key: key, Value: value, Version: uint32(version)}, nil
}

// CompareAndSwap persists value if the stored version equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, ns domain.Namespace, key string, value any, expected uint32) (uint32, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal value: %w", err)
	}

	next, err := casScript.Run(ctx, s.client,
		[]string{s.Key(ns, key), s.VersionKey()},
		string(data), expected, s.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to write to redis: %w", err)
	}
	if next < 0 {
		return 0, domain.ErrVersionConflict
	}

	return uint32(next), nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, ns domain.Namespace, key string) error {
	if err := s.client.Del(ctx, s.Key(ns, key)).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

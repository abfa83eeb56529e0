package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tendril/internal/logging"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/observability"
	"github.com/aretw0/tendril/pkg/ports"
)

// DefaultMaxAttempts bounds the read-modify-write loop of Set.
const DefaultMaxAttempts = 32

// Updater computes the next value of a key from its current value
// (nil when absent). It must not have side effects: under contention it runs
// once per attempt.
type Updater func(current any) (any, error)

// Client reads and writes keys of one scope of the state store.
// It is bound to a single invocation and safe for concurrent use.
type Client struct {
	store       ports.VersionedStore
	ns          domain.Namespace
	logger      *slog.Logger
	metrics     *observability.Metrics
	maxAttempts int
	strategy    RetryStrategy
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for conflicts and retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records conflicts and attempts.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithMaxAttempts bounds the attempts of Set. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithRetryStrategy sets the delay between conflicting attempts of Set.
func WithRetryStrategy(s RetryStrategy) Option {
	return func(c *Client) {
		c.strategy = s
	}
}

// New builds a client for the given scope of the invocation.
// It fails with domain.ErrIncompleteScope when the invocation lacks the ids the scope needs.
func New(store ports.VersionedStore, ic domain.InvocationContext, scope domain.Scope, opts ...Option) (*Client, error) {
	ns, err := scope.Resolve(ic)
	if err != nil {
		return nil, err
	}
	return NewForNamespace(store, ns, opts...)
}

// NewForNamespace builds a client for an already resolved namespace.
func NewForNamespace(store ports.VersionedStore, ns domain.Namespace, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, errors.New("state: store is required")
	}
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		store:       store,
		ns:          ns,
		logger:      logging.NewNop(),
		maxAttempts: DefaultMaxAttempts,
		strategy:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("scope", ns.String())
	return c, nil
}

// Namespace returns the namespace the client is bound to.
func (c *Client) Namespace() domain.Namespace {
	return c.ns
}

// Get returns the current entry. An absent key yields a nil value and
// domain.NoVersion without error.
func (c *Client) Get(ctx context.Context, key string) (domain.Entry, error) {
	entry, err := c.store.Get(ctx, c.ns, key)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("get %q: %w", key, err)
	}
	return entry, nil
}

// SetKV writes value only if the stored version equals expectedVersion.
// A version mismatch is not an error: the write is silently skipped and the
// caller decides whether to read again. Transport failures are returned.
func (c *Client) SetKV(ctx context.Context, key string, value any, expectedVersion uint32) error {
	_, err := c.store.CompareAndSwap(ctx, c.ns, key, value, expectedVersion)
	if errors.Is(err, domain.ErrVersionConflict) {
		c.metrics.ObserveConflict(c.ns.Scope.String())
		c.logger.Debug("conditional write skipped", "key", key, "expected_version", expectedVersion)
		return nil
	}
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Set applies fn to the current value and writes the result, retrying on
// concurrent modification. Every attempt reads the entry and writes against
// the version read in that same attempt, so concurrent updates are never lost.
//
// After the configured number of conflicting attempts Set gives up with a
// transient signal error. Errors returned by fn abort the loop unchanged.
func (c *Client) Set(ctx context.Context, key string, fn Updater) (domain.Entry, error) {
	scope := c.ns.Scope.String()

	for attempt := 1; ; attempt++ {
		// 1. Read
		entry, err := c.Get(ctx, key)
		if err != nil {
			return domain.Entry{}, err
		}

		// 2. Compute
		next, err := fn(entry.Value)
		if err != nil {
			return domain.Entry{}, err
		}

		// 3. Conditional write against the version just read
		version, err := c.store.CompareAndSwap(ctx, c.ns, key, next, entry.Version)
		if err == nil {
			c.metrics.ObserveSet(scope, attempt, false)
			return domain.Entry{Key: key, Value: next, Version: version}, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.Entry{}, fmt.Errorf("set %q: %w", key, err)
		}

		c.metrics.ObserveConflict(scope)
		if attempt >= c.maxAttempts {
			c.metrics.ObserveSet(scope, attempt, true)
			c.logger.Warn("set gave up under contention", "key", key, "attempts", attempt)
			return domain.Entry{}, domain.NewTransient(
				fmt.Sprintf("set %q in %s scope: gave up after %d conflicting attempts", key, scope, attempt))
		}

		// 4. Back off and retry
		wait := c.strategy.SleepDuration(attempt-1, err)
		c.logger.Debug("version conflict, retrying", "key", key, "attempt", attempt, "wait", wait)
		if wait <= 0 {
			if err := ctx.Err(); err != nil {
				return domain.Entry{}, err
			}
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Entry{}, ctx.Err()
		case <-timer.C:
		}
	}
}

// Delete removes key unconditionally.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, c.ns, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// GetAsync runs Get without blocking the caller.
func (c *Client) GetAsync(ctx context.Context, key string) *Future[domain.Entry] {
	return async(func() (domain.Entry, error) {
		return c.Get(ctx, key)
	})
}

// SetKVAsync runs SetKV without blocking the caller.
func (c *Client) SetKVAsync(ctx context.Context, key string, value any, expectedVersion uint32) *Future[struct{}] {
	return async(func() (struct{}, error) {
		return struct{}{}, c.SetKV(ctx, key, value, expectedVersion)
	})
}

// SetAsync runs Set without blocking the caller.
func (c *Client) SetAsync(ctx context.Context, key string, fn Updater) *Future[domain.Entry] {
	return async(func() (domain.Entry, error) {
		return c.Set(ctx, key, fn)
	})
}

// DeleteAsync runs Delete without blocking the caller.
func (c *Client) DeleteAsync(ctx context.Context, key string) *Future[struct{}] {
	return async(func() (struct{}, error) {
		return struct{}{}, c.Delete(ctx, key)
	})
}

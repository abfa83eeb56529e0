package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/tendril/pkg/adapters/redis"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	store := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestRedisStore_Contract(t *testing.T) {
	store, _ := newStore(t)
	ports.RunVersionedStoreContract(t, store)
}

func TestRedisStore_KeyLayout(t *testing.T) {
	store, mr := newStore(t, redis.WithPrefix("test:"))
	ctx := context.Background()
	ns := domain.Namespace{Scope: domain.ScopeProject, OrganizationID: "o1", ProjectID: "p1"}

	_, err := store.CompareAndSwap(ctx, ns, "counter", 7, domain.NoVersion)
	require.NoError(t, err)

	key := "test:org/o1/project/p1:counter"
	assert.Equal(t, key, store.Key(ns, "counter"))
	assert.True(t, mr.Exists(key))
	assert.Equal(t, "1", mr.HGet(key, "version"))
	assert.Equal(t, "7", mr.HGet(key, "value"))

	counter, err := mr.Get(store.VersionKey())
	require.NoError(t, err)
	assert.Equal(t, "1", counter)

	require.NoError(t, store.Delete(ctx, ns, "counter"))
	assert.False(t, mr.Exists(key))
	assert.True(t, mr.Exists(store.VersionKey()), "the counter survives deletes")
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	store, mr := newStore(t, redis.WithTTL(1*time.Second))
	ctx := context.Background()
	ns := domain.Namespace{Scope: domain.ScopeOrganization, OrganizationID: "o1"}

	// 1. Write
	v1, err := store.CompareAndSwap(ctx, ns, "lease", "held", domain.NoVersion)
	require.NoError(t, err)

	entry, err := store.Get(ctx, ns, "lease")
	require.NoError(t, err)
	assert.True(t, entry.Exists())

	// 2. Expire
	mr.FastForward(2 * time.Second)

	entry, err = store.Get(ctx, ns, "lease")
	require.NoError(t, err)
	assert.False(t, entry.Exists(), "expired entries read as absent")

	// 3. Rewrite: the version keeps advancing past the expired one
	v2, err := store.CompareAndSwap(ctx, ns, "lease", "again", domain.NoVersion)
	require.NoError(t, err)
	assert.Greater(t, v2, v1)
	assert.Zero(t, mr.TTL(store.VersionKey()), "the version counter never expires")
}

func TestRedisStore_CounterBehindExistingData(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()
	ns := domain.Namespace{Scope: domain.ScopeOrganization, OrganizationID: "o1"}

	// entry written before the counter existed
	mr.HSet(store.Key(ns, "legacy"), "value", `"old"`, "version", "7")

	v, err := store.CompareAndSwap(ctx, ns, "legacy", "new", 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), v)
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newStore(t)
	mr.Close()

	ns := domain.Namespace{Scope: domain.ScopeOrganization, OrganizationID: "o1"}
	_, err := store.Get(context.Background(), ns, "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrVersionConflict)
}

func TestRedisStore_FromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := redis.NewFromURL("redis://"+mr.Addr()+"/0", redis.WithPrefix("test:"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))

	ns := domain.Namespace{Scope: domain.ScopeOrganization, OrganizationID: "o1"}
	_, err = store.CompareAndSwap(context.Background(), ns, "k", "v", domain.NoVersion)
	require.NoError(t, err)
	assert.True(t, mr.Exists(store.Key(ns, "k")))

	_, err = redis.NewFromURL("http://not-redis")
	assert.Error(t, err)
}

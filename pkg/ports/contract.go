package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunVersionedStoreContract runs a suite of tests to verify that a VersionedStore
// implementation adheres to the defined interface contract.
func RunVersionedStoreContract(t *testing.T, store VersionedStore) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000000")
	ns := domain.Namespace{Scope: domain.ScopeEnvironment, OrganizationID: "org-" + suffix, ProjectID: "p1", EnvironmentID: "e1"}

	t.Run("Get Absent", func(t *testing.T) {
		entry, err := store.Get(ctx, ns, "absent")
		require.NoError(t, err, "Get on an absent key must not fail")
		assert.Nil(t, entry.Value)
		assert.Equal(t, domain.NoVersion, entry.Version)
		assert.False(t, entry.Exists())
	})

	t.Run("Create and Update", func(t *testing.T) {
		v1, err := store.CompareAndSwap(ctx, ns, "counter", "one", domain.NoVersion)
		require.NoError(t, err)
		assert.Greater(t, v1, domain.NoVersion)

		entry, err := store.Get(ctx, ns, "counter")
		require.NoError(t, err)
		assert.Equal(t, "one", entry.Value)
		assert.Equal(t, v1, entry.Version)

		v2, err := store.CompareAndSwap(ctx, ns, "counter", "two", v1)
		require.NoError(t, err)
		assert.Greater(t, v2, v1, "versions must advance")

		entry, err = store.Get(ctx, ns, "counter")
		require.NoError(t, err)
		assert.Equal(t, "two", entry.Value)
	})

	t.Run("Stale Version Is Rejected", func(t *testing.T) {
		v1, err := store.CompareAndSwap(ctx, ns, "stale", "fresh", domain.NoVersion)
		require.NoError(t, err)
		_, err = store.CompareAndSwap(ctx, ns, "stale", "newer", v1)
		require.NoError(t, err)

		_, err = store.CompareAndSwap(ctx, ns, "stale", "lost", v1)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		_, err = store.CompareAndSwap(ctx, ns, "stale", "lost", domain.NoVersion)
		assert.ErrorIs(t, err, domain.ErrVersionConflict, "create must fail when the key exists")

		entry, err := store.Get(ctx, ns, "stale")
		require.NoError(t, err)
		assert.Equal(t, "newer", entry.Value)
	})

	t.Run("Structured Values", func(t *testing.T) {
		value := map[string]any{"status": "ready", "attempts": float64(2), "done": true}
		_, err := store.CompareAndSwap(ctx, ns, "record", value, domain.NoVersion)
		require.NoError(t, err)

		entry, err := store.Get(ctx, ns, "record")
		require.NoError(t, err)
		assert.Equal(t, value, entry.Value)
	})

	t.Run("Delete", func(t *testing.T) {
		_, err := store.CompareAndSwap(ctx, ns, "doomed", "x", domain.NoVersion)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, ns, "doomed"))

		entry, err := store.Get(ctx, ns, "doomed")
		require.NoError(t, err)
		assert.False(t, entry.Exists(), "Get after Delete should report an absent key")

		assert.NoError(t, store.Delete(ctx, ns, "never-existed"))
	})

	t.Run("Versions Advance Across Delete", func(t *testing.T) {
		v1, err := store.CompareAndSwap(ctx, ns, "reborn", "first", domain.NoVersion)
		require.NoError(t, err)
		v2, err := store.CompareAndSwap(ctx, ns, "reborn", "second", v1)
		require.NoError(t, err)

		require.NoError(t, store.Delete(ctx, ns, "reborn"))

		v3, err := store.CompareAndSwap(ctx, ns, "reborn", "third", domain.NoVersion)
		require.NoError(t, err)
		assert.Greater(t, v3, v2, "a recreated key must not reuse a version")

		for _, stale := range []uint32{v1, v2} {
			_, err = store.CompareAndSwap(ctx, ns, "reborn", "stale", stale)
			assert.ErrorIs(t, err, domain.ErrVersionConflict, "version %d predates the delete", stale)
		}

		entry, err := store.Get(ctx, ns, "reborn")
		require.NoError(t, err)
		assert.Equal(t, "third", entry.Value)
		assert.Equal(t, v3, entry.Version)
	})

	t.Run("Scopes Are Isolated", func(t *testing.T) {
		org := domain.Namespace{Scope: domain.ScopeOrganization, OrganizationID: ns.OrganizationID}
		project := domain.Namespace{Scope: domain.ScopeProject, OrganizationID: ns.OrganizationID, ProjectID: ns.ProjectID}

		_, err := store.CompareAndSwap(ctx, org, "shared", "org-value", domain.NoVersion)
		require.NoError(t, err)

		entry, err := store.Get(ctx, project, "shared")
		require.NoError(t, err)
		assert.False(t, entry.Exists(), "a write in one scope must not appear in another")

		entry, err = store.Get(ctx, ns, "shared")
		require.NoError(t, err)
		assert.False(t, entry.Exists())
	})

	t.Run("Concurrent Create Has One Winner", func(t *testing.T) {
		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			winners   int
			conflicts int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.CompareAndSwap(ctx, ns, "race", fmt.Sprintf("writer-%d", i), domain.NoVersion)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case errors.Is(err, domain.ErrVersionConflict):
					conflicts++
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, winners)
		assert.Equal(t, writers-1, conflicts)
	})
}

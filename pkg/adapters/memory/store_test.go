package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunVersionedStoreContract(t, store)
}

func TestMemoryStore_ValuesAreCopied(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	ns := domain.Namespace{Scope: domain.ScopeOrganization, OrganizationID: "o1"}

	value := map[string]any{"status": "pending"}
	_, err := store.CompareAndSwap(ctx, ns, "job", value, domain.NoVersion)
	require.NoError(t, err)

	value["status"] = "mutated"

	entry, err := store.Get(ctx, ns, "job")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "pending"}, entry.Value)
	assert.Equal(t, 1, store.Len())
}

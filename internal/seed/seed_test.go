package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/tendril/internal/seed"
	"github.com/aretw0/tendril/pkg/adapters/memory"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `
entries:
  - scope: organization
    organization_id: org-1
    key: plan
    value: enterprise
  - scope: environment
    organization_id: org-1
    project_id: proj-1
    environment_id: env-1
    key: quota
    value:
      limit: 10
      regions: [us, eu]
`

func TestParseAndApply(t *testing.T) {
	f, err := seed.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, f.Entries, 2)
	assert.Equal(t, domain.ScopeEnvironment, f.Entries[1].Scope)

	store := memory.NewStore()
	n, err := seed.Apply(context.Background(), store, f)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entry, err := store.Get(context.Background(), f.Entries[1].Namespace(), "quota")
	require.NoError(t, err)
	assert.True(t, entry.Exists())
	assert.Equal(t, map[string]any{"limit": float64(10), "regions": []any{"us", "eu"}}, entry.Value)

	t.Run("Existing Keys Are Kept", func(t *testing.T) {
		org := f.Entries[0].Namespace()
		_, err := store.CompareAndSwap(context.Background(), org, "plan", "free", 1)
		require.NoError(t, err)

		n, err := seed.Apply(context.Background(), store, f)
		require.NoError(t, err)
		assert.Zero(t, n)

		entry, err := store.Get(context.Background(), org, "plan")
		require.NoError(t, err)
		assert.Equal(t, "free", entry.Value)
	})
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown scope":  "entries:\n  - scope: galaxy\n    organization_id: o\n    key: k\n",
		"missing ids":    "entries:\n  - scope: project\n    organization_id: o\n    key: k\n",
		"missing key":    "entries:\n  - scope: organization\n    organization_id: o\n",
		"unknown fields": "entries:\n  - scope: organization\n    organization_id: o\n    key: k\n    color: red\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := seed.Parse(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	f, err := seed.Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, f.Entries)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	n, err := seed.LoadFile(context.Background(), memory.NewStore(), path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = seed.LoadFile(context.Background(), memory.NewStore(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

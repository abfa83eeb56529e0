package ports

import (
	"context"

	"github.com/aretw0/tendril/pkg/domain"
)

// VersionedStore is the external key-value store shared by all invocations.
// Every key lives inside a namespace; namespaces never share keys.
type VersionedStore interface {
	// Get returns the entry for key. An absent key is not an error: it yields
	// an entry with a nil value and domain.NoVersion.
	Get(ctx context.Context, ns domain.Namespace, key string) (domain.Entry, error)

	// CompareAndSwap writes value only if the current version equals expected
	// (domain.NoVersion means "only if absent") and returns the new version.
	// A mismatch returns domain.ErrVersionConflict and leaves the entry untouched.
	CompareAndSwap(ctx context.Context, ns domain.Namespace, key string, value any, expected uint32) (uint32, error)

	// Delete removes key regardless of its version. Deleting an absent key succeeds.
	Delete(ctx context.Context, ns domain.Namespace, key string) error
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/tendril/pkg/domain"
)

type record struct {
	data    []byte
	version uint32
}

// Store implements ports.VersionedStore in memory.
// Safe for concurrent use. Values are kept JSON encoded so callers observe
// the same types a remote store would return.
//
// Versions come from one store-wide sequence, so a key that is deleted and
// written again never gets a version it had before.
type Store struct {
	data map[string]record
	seq  uint32
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]record),
	}
}

func storageKey(ns domain.Namespace, key string) string {
	return ns.String() + "#" + key
}

// Get returns the entry for key, or an absent entry.
func (s *Store) Get(ctx context.Context, ns domain.Namespace, key string) (domain.Entry, error) {
	s.mu.RLock()
	rec, ok := s.data[storageKey(ns, key)]
	s.mu.RUnlock()

	if !ok {
		return domain.Entry{Key: key, Version: domain.NoVersion}, nil
	}

	var value any
	if err := json.Unmarshal(rec.data, &value); err != nil {
		return domain.Entry{}, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return domain.Entry{Key: key, Value: value, Version: rec.version}, nil
}

// CompareAndSwap writes value if the current version matches expected.
func (s *Store) CompareAndSwap(ctx context.Context, ns domain.Namespace, key string, value any, expected uint32) (uint32, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal value: %w", err)
	}

	k := storageKey(ns, key)

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.data[k].version
	if current != expected {
		return 0, domain.ErrVersionConflict
	}

	s.seq++
	s.data[k] = record{data: data, version: s.seq}
	return s.seq, nil
}

// Delete removes the entry.
func (s *Store) Delete(ctx context.Context, ns domain.Namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, storageKey(ns, key))
	return nil
}

// Len returns the number of stored entries across all namespaces.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

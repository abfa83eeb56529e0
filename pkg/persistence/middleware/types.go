package middleware

import "github.com/aretw0/tendril/pkg/ports"

// Middleware allows wrapping a VersionedStore to add behavior.
type Middleware func(ports.VersionedStore) ports.VersionedStore

// Chain wraps store with mws. The first middleware is the outermost.
func Chain(store ports.VersionedStore, mws ...Middleware) ports.VersionedStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}

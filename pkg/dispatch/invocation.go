package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/state"
)

// Handler runs the business logic of one invocation and reports its outcome.
type Handler func(ctx context.Context, inv *Invocation) domain.Result

// Adapt turns a handler in the classic (data, error) style into a Handler.
// Errors are classified with domain.ResultFromError.
func Adapt(fn func(ctx context.Context, inv *Invocation) (any, error)) Handler {
	return func(ctx context.Context, inv *Invocation) domain.Result {
		data, err := fn(ctx, inv)
		if err != nil {
			return domain.ResultFromError(err)
		}
		return domain.Success(data)
	}
}

// ErrNoStateStore is returned by Invocation.State when no store is configured
// and the engine sent no store location.
var ErrNoStateStore = errors.New("no state store configured for this invocation")

// Invocation is everything a handler receives besides its context.
type Invocation struct {
	// ID identifies this invocation in logs. It is not the activity id.
	ID      string
	Context domain.InvocationContext
	Request domain.Request
	// Logger ships records to the engine and mirrors them to the process log.
	Logger *slog.Logger

	stores    StoreFactory
	stateOpts []state.Option
}

// Previous returns the continuation payload of the prior invocation, or nil.
func (inv *Invocation) Previous() domain.Object {
	return inv.Request.Previous()
}

// State returns a client bound to the given scope of the state store.
func (inv *Invocation) State(scope domain.Scope, opts ...state.Option) (*state.Client, error) {
	if inv.stores == nil {
		return nil, ErrNoStateStore
	}
	store, err := inv.stores(inv.Context)
	if err != nil {
		return nil, err
	}

	all := make([]state.Option, 0, len(inv.stateOpts)+len(opts)+1)
	all = append(all, state.WithLogger(inv.Logger))
	all = append(all, inv.stateOpts...)
	all = append(all, opts...)
	return state.New(store, inv.Context, scope, all...)
}

// Package demo holds the functions served by `tendril serve` for trying the
// protocol without writing a handler.
package demo

import (
	"context"
	"sort"

	"github.com/aretw0/tendril/pkg/dispatch"
	"github.com/aretw0/tendril/pkg/domain"
	"github.com/aretw0/tendril/pkg/state"
)

// Functions maps names to demo handlers.
var Functions = map[string]dispatch.Handler{
	"echo":      Echo,
	"countdown": Countdown,
	"counter":   dispatch.Adapt(Counter),
}

// Names returns the demo function names, sorted.
func Names() []string {
	names := make([]string, 0, len(Functions))
	for name := range Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Echo returns the request, metadata included.
func Echo(_ context.Context, inv *dispatch.Invocation) domain.Result {
	inv.Logger.Info("echo", "keys", len(inv.Request.Object))
	return domain.Success(inv.Request.Object)
}

// Countdown asks to be invoked again until request.from (default 3) reaches zero.
func Countdown(_ context.Context, inv *dispatch.Invocation) domain.Result {
	remaining := inv.Request.GetInt("from")
	if !inv.Request.Has("from") {
		remaining = 3
	}
	if inv.Request.IsContinuation() {
		remaining = inv.Previous().GetInt("remaining")
	}

	if remaining > 0 {
		inv.Logger.Info("not yet", "remaining", remaining)
		return domain.RetryWithState("counting down", domain.Object{"remaining": remaining - 1})
	}
	return domain.Success(map[string]any{"done": true})
}

// Counter increments request.key (default "invocations") in the state store
// at request.scope (default environment) and returns the new value.
func Counter(ctx context.Context, inv *dispatch.Invocation) (any, error) {
	scope := domain.ScopeEnvironment
	if s := inv.Request.GetString("scope"); s != "" {
		parsed, err := domain.ParseScope(s)
		if err != nil {
			return nil, domain.NewFailed(err.Error())
		}
		scope = parsed
	}

	key := inv.Request.GetString("key")
	if key == "" {
		key = "invocations"
	}

	st, err := inv.State(scope)
	if err != nil {
		return nil, err
	}
	entry, err := st.Set(ctx, key, state.Add(1))
	if err != nil {
		return nil, err
	}

	inv.Logger.Info("counter incremented", "key", key, "version", entry.Version)
	return map[string]any{"key": key, "value": entry.Value, "version": entry.Version}, nil
}

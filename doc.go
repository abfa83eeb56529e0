/*
Package tendril is the function-side runtime for short-lived workflow functions invoked by an
external orchestration engine over HTTP.

A function handles one invocation per HTTP call. Instead of blocking on slow external work it
returns a "call me again with this state" signal, and the engine re-invokes it later with that
state placed at request.previous. Logs written during an invocation are shipped to the engine,
and a scoped client gives handlers optimistic-concurrency access to an external versioned store.

# Concept

Each invocation ends with exactly one outcome:

  - Success: the step completed and its payload is returned as {"data": ...}.
  - RetryWithState: not done yet; the payload comes back as request.previous.
  - Transient: an infrastructure hiccup; the engine re-invokes unchanged after its own backoff.
  - Failed: permanent failure of the step.

Signals are answered with status 500 and distinguished by errorCode (1, 3 and 2 respectively).

# Usage

	package main

	import (
		"context"
		"log"
		"os/signal"
		"syscall"

		"github.com/aretw0/tendril"
		"github.com/aretw0/tendril/pkg/dispatch"
		"github.com/aretw0/tendril/pkg/domain"
	)

	func handle(ctx context.Context, inv *dispatch.Invocation) domain.Result {
		n := inv.Previous().GetInt("polls")
		if n < 3 {
			inv.Logger.Info("resource not ready", "polls", n)
			return domain.RetryWithState("waiting for resource", domain.Object{"polls": n + 1})
		}
		return domain.Success(map[string]any{"polls": n})
	}

	func main() {
		fn, err := tendril.New(handle)
		if err != nil {
			log.Fatal(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
		defer stop()

		if err := fn.Serve(ctx); err != nil {
			log.Fatal(err)
		}
	}
*/
package tendril

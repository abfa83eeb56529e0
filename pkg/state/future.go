package state

import "context"

// Future is the pending result of an asynchronous state operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func async[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

// Done is closed once the operation has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the operation or for ctx to end, whichever comes first.
// Abandoning a Future does not cancel the operation; cancel the context
// passed to the async call for that.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Wait blocks until the operation has finished.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

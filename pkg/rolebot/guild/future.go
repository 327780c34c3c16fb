package guild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrPanicked wraps a panic recovered from a function run by Go.
var ErrPanicked = errors.New("panicked")

// Future is the completion signal of an asynchronous store request. It
// completes exactly once, with either a value or an error.
//
// There is no timeout: a request that never completes leaves its
// continuations pending forever.
type Future[T any] struct {
	once sync.Once
	done chan struct{}
	val  T
	err  error
}

// NewFuture returns an incomplete future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolved returns a future that is already complete.
func Resolved[T any](val T, err error) *Future[T] {
	f := NewFuture[T]()
	f.Complete(val, err)
	return f
}

// Go runs fn in its own goroutine and completes the returned future with
// its result. A panic in fn completes the future with ErrPanicked.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.Complete(zero, fmt.Errorf("%w: %v", ErrPanicked, r))
			}
		}()
		f.Complete(fn())
	}()
	return f
}

// Complete settles the future. Later calls are ignored.
func (f *Future[T]) Complete(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// Done is closed when the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then registers fn to run, on its own goroutine, after completion.
// It returns immediately. A panic in fn is logged and swallowed.
func (f *Future[T]) Then(fn func(T, error)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("completion continuation panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		<-f.done
		fn(f.val, f.err)
	}()
}

// Chain returns a future completed by the future fn produces once f completes.
func Chain[T, U any](f *Future[T], fn func(T, error) *Future[U]) *Future[U] {
	out := NewFuture[U]()
	f.Then(func(val T, err error) {
		next := fn(val, err)
		next.Then(out.Complete)
	})
	return out
}

// File: executor/future.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Poll-based futures. A future is an explicit state machine: each Poll either
// produces the value or stores the waker and reports "not ready".

package executor

// Waker re-schedules whoever is waiting on a future. Wake may be called from
// any goroutine, any number of times.
type Waker interface {
	Wake()
}

// WakerFunc adapts a function to Waker.
type WakerFunc func()

// Wake implements Waker.
func (f WakerFunc) Wake() { f() }

// NoopWaker ignores every wake.
var NoopWaker Waker = WakerFunc(func() {})

// Future is an asynchronous computation producing T.
//
// Poll must not block. When it returns ok == false it must have arranged for
// w (the most recent waker) to be woken once progress is possible.
type Future[T any] interface {
	Poll(w Waker) (val T, ok bool)
}

// PollFunc adapts a poll function to Future.
type PollFunc[T any] func(w Waker) (T, bool)

// Poll implements Future.
func (f PollFunc[T]) Poll(w Waker) (T, bool) { return f(w) }

// Ready returns a future that is immediately complete with val.
func Ready[T any](val T) Future[T] {
	return PollFunc[T](func(Waker) (T, bool) { return val, true })
}

// Pending returns a future that never completes and never wakes.
func Pending[T any]() Future[T] {
	return PollFunc[T](func(Waker) (val T, ok bool) { return val, false })
}

// YieldNow returns a future that reports "not ready" once, waking itself, and
// completes on the next poll. Inside a task this defers the rest of the work
// to the next pass.
func YieldNow() Future[struct{}] {
	var yielded bool
	return PollFunc[struct{}](func(w Waker) (struct{}, bool) {
		if yielded {
			return struct{}{}, true
		}
		yielded = true
		w.Wake()
		return struct{}{}, false
	})
}

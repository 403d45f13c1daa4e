// File: executor/task.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Task state machine. A task is Scheduled while it sits in the ready queue,
// Running while its future is polled, dormant when neither bit is set, and
// Completed for good once the future returned a value (or panicked).
// Notify marks a wake that reached a running task from outside the consumer.

package executor

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
)

const (
	stateScheduled uint32 = 1 << iota
	stateRunning
	stateCompleted
	stateNotify
)

// body is the type-erased part of a task that owns its future and output.
type body interface {
	poll(w Waker) bool
	abort(p *PanicError)
}

type task struct {
	id    uint64
	sched *Scheduler
	state atomic.Uint32
	body  body
}

// Wake implements Waker. At most one queue entry exists per task: waking an
// already scheduled or completed task is a no-op, and waking a running task
// only marks it so the pass executor re-queues it after the run. A wake of a
// running task from any goroutine but the consumer also marks it for notify.
func (t *task) Wake() {
	foreign, checked := false, false
	for {
		s := t.state.Load()
		if s&stateCompleted != 0 {
			return
		}
		if s&stateRunning == 0 {
			if s&stateScheduled != 0 {
				return
			}
			if t.state.CompareAndSwap(s, s|stateScheduled) {
				t.sched.schedule(t)
				return
			}
			continue
		}
		if !checked {
			foreign, checked = !t.sched.onConsumer(), true
		}
		next := s | stateScheduled
		if foreign {
			next |= stateNotify
		}
		if next == s || t.state.CompareAndSwap(s, next) {
			return
		}
	}
}

// run polls the future once. rewake reports that the task was woken while
// running and the caller owns delivery of that wake; notify reports that at
// least one of those wakes came from outside the consumer.
func (t *task) run() (rewake, notify bool, p *PanicError) {
	for {
		s := t.state.Load()
		if s&stateCompleted != 0 {
			return false, false, nil
		}
		if t.state.CompareAndSwap(s, (s&^(stateScheduled|stateNotify))|stateRunning) {
			break
		}
	}

	done, p := t.pollOnce()
	if done {
		t.state.Store(stateCompleted)
		return false, false, p
	}

	for {
		s := t.state.Load()
		if t.state.CompareAndSwap(s, s&^(stateRunning|stateNotify)) {
			return s&stateScheduled != 0, s&stateNotify != 0, nil
		}
	}
}

func (t *task) pollOnce() (done bool, p *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			p = &PanicError{TaskID: t.id, Value: r, Stack: debug.Stack()}
			t.body.abort(p)
			done = true
		}
	}()
	return t.body.poll(t), nil
}

// output holds a task's future until completion and its result afterwards.
type output[T any] struct {
	fut Future[T]

	mu     sync.Mutex
	done   bool
	val    T
	panic  *PanicError
	joiner Waker
}

func (o *output[T]) poll(w Waker) bool {
	v, ok := o.fut.Poll(w)
	if !ok {
		return false
	}
	o.finish(v, nil)
	return true
}

func (o *output[T]) abort(p *PanicError) {
	var zero T
	o.finish(zero, p)
}

func (o *output[T]) finish(v T, p *PanicError) {
	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return
	}
	o.val, o.panic, o.done = v, p, true
	o.fut = nil
	j := o.joiner
	o.joiner = nil
	o.mu.Unlock()
	if j != nil {
		j.Wake()
	}
}

// JoinHandle is the caller-visible result of a spawned task. It is itself a
// Future, so tasks and Drive can await other tasks.
//
// Dropping a JoinHandle does not stop the task.
type JoinHandle[T any] struct {
	t   *task
	out *output[T]
}

// Poll implements Future. Before completion it registers w to be woken when
// the task completes. If the task panicked, Poll re-panics with *PanicError.
func (h *JoinHandle[T]) Poll(w Waker) (T, bool) {
	o := h.out
	o.mu.Lock()
	if !o.done {
		o.joiner = w
		o.mu.Unlock()
		var zero T
		return zero, false
	}
	v, p := o.val, o.panic
	o.mu.Unlock()
	if p != nil {
		panic(p)
	}
	return v, true
}

// Done reports whether the task has completed.
func (h *JoinHandle[T]) Done() bool {
	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	return h.out.done
}

// ID returns the task's identifier, as used in logs.
func (h *JoinHandle[T]) ID() uint64 { return h.t.id }

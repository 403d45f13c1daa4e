// File: internal/concurrency/mpsc_queue.go
// Package concurrency provides lock-free queues for the executor.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unbounded multi-producer/single-consumer FIFO. Producers never block each
// other beyond one atomic swap; the consumer never takes a lock.

package concurrency

import "sync/atomic"

type mpscNode[T any] struct {
	next atomic.Pointer[mpscNode[T]]
	val  T
}

// MPSCQueue is an intrusive linked-list queue with a stub node.
// Push may be called from any goroutine; Pop and Len must be called by the
// single consumer only.
type MPSCQueue[T any] struct {
	head atomic.Pointer[mpscNode[T]] // last pushed node, shared by producers
	_    [56]byte                     // keep producer and consumer cache lines apart
	tail *mpscNode[T]                 // consumer-owned, already consumed node
	size atomic.Int64
}

// NewMPSCQueue creates an empty queue.
func NewMPSCQueue[T any]() *MPSCQueue[T] {
	stub := new(mpscNode[T])
	q := &MPSCQueue[T]{tail: stub}
	q.head.Store(stub)
	return q
}

// Push appends val. Safe for concurrent use.
func (q *MPSCQueue[T]) Push(val T) {
	n := &mpscNode[T]{val: val}
	prev := q.head.Swap(n)
	prev.next.Store(n)
	q.size.Add(1)
}

// Pop removes the oldest linked element. ok is false when the queue is empty
// or when the next producer has swapped the head but not linked its node yet.
func (q *MPSCQueue[T]) Pop() (val T, ok bool) {
	next := q.tail.next.Load()
	if next == nil {
		return val, false
	}
	q.tail = next
	val = next.val
	var zero T
	next.val = zero
	q.size.Add(-1)
	return val, true
}

// Len returns the number of pushed but not yet popped elements.
func (q *MPSCQueue[T]) Len() int {
	// Pop may decrement before the matching Push increments.
	if n := q.size.Load(); n > 0 {
		return int(n)
	}
	return 0
}

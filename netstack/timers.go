// File: netstack/timers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netstack

import (
	"container/heap"
	"time"
)

// TimerID identifies an armed timer.
type TimerID uint64

type timer struct {
	id       TimerID
	deadline time.Time
	period   time.Duration
	fn       func(now time.Time)
	index    int
}

// timerHeap is a min-heap on deadline, ties broken by arming order.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].id < h[j].id
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

var _ heap.Interface = (*timerHeap)(nil)

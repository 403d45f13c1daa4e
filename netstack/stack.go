// File: netstack/stack.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netstack

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-netexec/api"
	"github.com/momentics/hioload-netexec/executor"
)

// Device is serviced on every stack pass, e.g. to detect received frames
// while interrupts are off.
type Device interface {
	Service(now time.Time)
}

// Stack owns the timers and devices of the network subsystem.
type Stack struct {
	clock  api.Clock
	logger *logiface.Logger[logiface.Event]

	mu      sync.Mutex
	timers  timerHeap
	byID    map[TimerID]*timer
	nextID  TimerID
	devices []Device
	closed  bool

	services atomic.Uint64
	fired    atomic.Uint64
}

var _ api.DelayOracle = (*Stack)(nil)

// Option configures a Stack.
type Option func(*Stack)

// WithLogger sets the stack logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(s *Stack) { s.logger = logger }
}

// WithHousekeeping arms a periodic maintenance timer. Besides its own work
// it keeps the delay bounded, so an otherwise idle stack lets the driver
// park for at most period.
func WithHousekeeping(period time.Duration) Option {
	return func(s *Stack) {
		if period <= 0 {
			return
		}
		s.every(period, func(now time.Time) {
			s.logger.Debug().
				Int("timers", s.Len()).
				Uint64("fired", s.fired.Load()).
				Log("netstack: housekeeping")
		})
	}
}

// New creates a stack reading time from clock.
func New(clock api.Clock, opts ...Option) *Stack {
	if clock == nil {
		clock = api.SystemClock{}
	}
	s := &Stack{
		clock: clock,
		byID:  make(map[TimerID]*timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach adds a device serviced on every stack pass.
func (s *Stack) Attach(dev Device) {
	s.mu.Lock()
	s.devices = append(s.devices, dev)
	s.mu.Unlock()
}

// Arm schedules fn to run once, after d.
func (s *Stack) Arm(d time.Duration, fn func(now time.Time)) TimerID {
	return s.arm(d, 0, fn)
}

// Every schedules fn to run every period. A period <= 0 is rejected with a
// zero TimerID.
func (s *Stack) Every(period time.Duration, fn func(now time.Time)) TimerID {
	if period <= 0 {
		return 0
	}
	return s.every(period, fn)
}

func (s *Stack) every(period time.Duration, fn func(now time.Time)) TimerID {
	return s.arm(period, period, fn)
}

func (s *Stack) arm(d, period time.Duration, fn func(now time.Time)) TimerID {
	deadline := s.clock.Now().Add(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t := &timer{id: s.nextID, deadline: deadline, period: period, fn: fn}
	heap.Push(&s.timers, t)
	s.byID[t.id] = t
	return t.id
}

// Cancel disarms a timer. It reports whether the timer was still armed.
func (s *Stack) Cancel(id TimerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	heap.Remove(&s.timers, t.index)
	return true
}

// Len returns the number of armed timers.
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// NetworkDelay implements api.DelayOracle: the time until the earliest
// deadline, zero when one is already due, ok=false without timers.
func (s *Stack) NetworkDelay(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return 0, false
	}
	return max(s.timers[0].deadline.Sub(now), 0), true
}

// Service services the devices and runs every timer due at now, in
// deadline order. Periodic timers are re-armed relative to their previous
// deadline. Returns the number of timers run.
func (s *Stack) Service(now time.Time) int {
	s.services.Add(1)
	s.mu.Lock()
	devices := s.devices
	s.mu.Unlock()
	for _, dev := range devices {
		dev.Service(now)
	}

	ran := 0
	for {
		s.mu.Lock()
		if len(s.timers) == 0 || s.timers[0].deadline.After(now) {
			s.mu.Unlock()
			break
		}
		t := s.timers[0]
		if t.period > 0 {
			t.deadline = t.deadline.Add(t.period)
			if !t.deadline.After(now) {
				// fell behind by more than a period, skip the missed ticks
				t.deadline = now.Add(t.period)
			}
			heap.Fix(&s.timers, 0)
		} else {
			heap.Pop(&s.timers)
			delete(s.byID, t.id)
		}
		s.mu.Unlock()

		t.fn(now)
		ran++
	}
	s.fired.Add(uint64(ran))
	return ran
}

// Close stops the service task at its next poll.
func (s *Stack) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Run returns the background task that services the stack once per
// executor pass. It completes after Close.
func (s *Stack) Run() executor.Future[struct{}] {
	return executor.PollFunc[struct{}](func(w executor.Waker) (struct{}, bool) {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return struct{}{}, true
		}
		s.Service(s.clock.Now())
		w.Wake()
		return struct{}{}, false
	})
}

// RegisterProbes exposes stack state through dbg.
func (s *Stack) RegisterProbes(dbg api.Debug) {
	dbg.RegisterProbe("netstack.timers", func() any { return s.Len() })
	dbg.RegisterProbe("netstack.services", func() any { return s.services.Load() })
	dbg.RegisterProbe("netstack.fired", func() any { return s.fired.Load() })
}

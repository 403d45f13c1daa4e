// Package fake
// Author: momentics <momentics@gmail.com>
//
// Simulated kernel for tests: a virtual clock, armed-block parking, scheduled
// interrupt events and a full trace of every primitive called.

package fake

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/momentics/hioload-netexec/api"
)

var (
	_ api.KernelOps = (*Kernel)(nil)
	_ api.Clock     = (*Kernel)(nil)
)

// Epoch is the virtual time a new Kernel starts at.
var Epoch = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

// OpKind names a kernel primitive.
type OpKind uint8

const (
	OpCurrentThread OpKind = iota + 1
	OpYield
	OpWake
	OpSetPolling
	OpBlock
)

func (k OpKind) String() string {
	switch k {
	case OpCurrentThread:
		return "current_thread"
	case OpYield:
		return "yield"
	case OpWake:
		return "wake"
	case OpSetPolling:
		return "set_polling"
	case OpBlock:
		return "block"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// Op is one recorded call. Arg is the thread id for OpWake, 0/1 for
// OpSetPolling, milliseconds for OpBlock and 0 otherwise.
type Op struct {
	Kind OpKind
	Arg  uint64
}

type event struct {
	at  time.Time
	seq int
	fn  func()
}

// Kernel implements api.KernelOps and api.Clock on virtual time.
//
// Time moves only when Now is read (by the configured tick), when Advance is
// called, or while a Yield is parked after BlockWithTimeout. Scheduled events
// fire as the clock passes them; they typically play the role of interrupts
// and may call WakeThread.
type Kernel struct {
	mu      sync.Mutex
	now     time.Time
	tick    time.Duration
	tid     api.ThreadID
	polling bool
	armed   bool
	blockMs uint64
	woken   bool
	seq     int
	events  []event
	ops     []Op
	slept   []time.Duration

	parkedPolling int
	foreignWakes  int
}

// NewKernel returns a kernel whose only thread is tid 1, at Epoch, with a
// zero tick.
func NewKernel() *Kernel {
	return &Kernel{now: Epoch, tid: 1}
}

// SetTick makes every Now advance the clock by d, modelling the time a busy
// polling iteration takes.
func (k *Kernel) SetTick(d time.Duration) {
	k.mu.Lock()
	k.tick = d
	k.mu.Unlock()
}

// At schedules fn to run once the clock reaches now+after.
func (k *Kernel) At(after time.Duration, fn func()) {
	k.mu.Lock()
	k.seq++
	k.events = append(k.events, event{at: k.now.Add(after), seq: k.seq, fn: fn})
	sort.Slice(k.events, func(i, j int) bool {
		if k.events[i].at.Equal(k.events[j].at) {
			return k.events[i].seq < k.events[j].seq
		}
		return k.events[i].at.Before(k.events[j].at)
	})
	k.mu.Unlock()
}

// Now implements api.Clock.
func (k *Kernel) Now() time.Time {
	k.mu.Lock()
	k.now = k.now.Add(k.tick)
	now := k.now
	k.mu.Unlock()
	k.fireDue(now)
	return now
}

// Advance moves the clock forward by d, firing due events.
func (k *Kernel) Advance(d time.Duration) {
	k.mu.Lock()
	k.now = k.now.Add(d)
	now := k.now
	k.mu.Unlock()
	k.fireDue(now)
}

// Elapsed returns the virtual time since Epoch.
func (k *Kernel) Elapsed() time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.now.Sub(Epoch)
}

// fireDue runs every event at or before now, outside the lock.
func (k *Kernel) fireDue(now time.Time) {
	for {
		k.mu.Lock()
		if len(k.events) == 0 || k.events[0].at.After(now) {
			k.mu.Unlock()
			return
		}
		ev := k.events[0]
		k.events = k.events[1:]
		k.mu.Unlock()
		ev.fn()
	}
}

// CurrentThread implements api.KernelOps.
func (k *Kernel) CurrentThread() api.ThreadID {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ops = append(k.ops, Op{Kind: OpCurrentThread})
	return k.tid
}

// WakeThread implements api.KernelOps. A wake only cuts a park short when it
// arrives after BlockWithTimeout; earlier wakes find the thread running.
func (k *Kernel) WakeThread(tid api.ThreadID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ops = append(k.ops, Op{Kind: OpWake, Arg: uint64(tid)})
	if tid != k.tid {
		k.foreignWakes++
		return
	}
	if k.armed {
		k.woken = true
	}
}

// SetPollingMode implements api.KernelOps.
func (k *Kernel) SetPollingMode(enabled bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	var arg uint64
	if enabled {
		arg = 1
	}
	k.ops = append(k.ops, Op{Kind: OpSetPolling, Arg: arg})
	k.polling = enabled
}

// BlockWithTimeout implements api.KernelOps.
func (k *Kernel) BlockWithTimeout(ms uint64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ops = append(k.ops, Op{Kind: OpBlock, Arg: ms})
	k.armed = true
	k.woken = false
	k.blockMs = ms
}

// Yield implements api.KernelOps. After BlockWithTimeout it parks on virtual
// time until the timeout elapses or an event wakes the thread.
func (k *Kernel) Yield() {
	k.mu.Lock()
	k.ops = append(k.ops, Op{Kind: OpYield})
	if !k.armed {
		k.mu.Unlock()
		return
	}
	if k.polling {
		k.parkedPolling++
	}
	start := k.now
	deadline := k.now.Add(time.Duration(k.blockMs) * time.Millisecond)
	for !k.woken {
		if len(k.events) == 0 || k.events[0].at.After(deadline) {
			k.now = deadline
			break
		}
		ev := k.events[0]
		k.events = k.events[1:]
		if ev.at.After(k.now) {
			k.now = ev.at
		}
		k.mu.Unlock()
		ev.fn()
		k.mu.Lock()
	}
	k.slept = append(k.slept, k.now.Sub(start))
	k.armed = false
	k.woken = false
	k.mu.Unlock()
}

// Polling returns the current polling mode.
func (k *Kernel) Polling() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.polling
}

// Ops returns a copy of the recorded trace.
func (k *Kernel) Ops() []Op {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]Op(nil), k.ops...)
}

// Count returns how many times kind was called.
func (k *Kernel) Count(kind OpKind) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, op := range k.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Blocks returns the argument of every BlockWithTimeout call.
func (k *Kernel) Blocks() []uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []uint64
	for _, op := range k.ops {
		if op.Kind == OpBlock {
			out = append(out, op.Arg)
		}
	}
	return out
}

// Slept returns the virtual duration of every park.
func (k *Kernel) Slept() []time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]time.Duration(nil), k.slept...)
}

// ParkedWhilePolling counts parks entered with polling mode still on.
func (k *Kernel) ParkedWhilePolling() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.parkedPolling
}

// ForeignWakes counts wakes addressed to a thread this kernel does not know.
func (k *Kernel) ForeignWakes() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.foreignWakes
}

// File: kernel/hosted.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package kernel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-netexec/affinity"
	"github.com/momentics/hioload-netexec/api"
	"github.com/momentics/hioload-netexec/internal/concurrency"
)

// PollingSwitch receives polling-mode changes, typically a network device.
type PollingSwitch interface {
	SetPollingMode(enabled bool)
}

// thread is the kernel-side record of one driving OS thread. timeout is
// touched only by the owning thread; armed may be cleared by Yield on
// another thread when the driver was not locked.
type thread struct {
	mu     sync.RWMutex // held for writing only to close p
	closed bool
	p      parker

	armed   atomic.Bool
	timeout time.Duration
}

func (th *thread) park(d time.Duration) error {
	th.mu.RLock()
	defer th.mu.RUnlock()
	if th.closed {
		return nil
	}
	return th.p.park(d)
}

func (th *thread) unpark() error {
	th.mu.RLock()
	defer th.mu.RUnlock()
	if th.closed {
		return nil
	}
	return th.p.unpark()
}

func (th *thread) close() error {
	th.mu.Lock()
	defer th.mu.Unlock()
	if th.closed {
		return nil
	}
	th.closed = true
	return th.p.close()
}

// Hosted implements api.KernelOps on top of the host OS scheduler.
//
// BlockWithTimeout and the Yield that follows must run on the same OS
// thread, so a driver goroutine has to hold LockThread for as long as it
// drives. A Yield that lands on another thread is logged and degrades to a
// plain CPU yield.
type Hosted struct {
	logger *logiface.Logger[logiface.Event]
	tid    func() api.ThreadID

	mu      sync.RWMutex
	threads map[api.ThreadID]*thread
	arms    map[uint64]api.ThreadID // goroutine -> thread armed by it

	sw      atomic.Pointer[switchBox]
	polling atomic.Bool

	parks   atomic.Uint64
	wakes   atomic.Uint64
	strayed atomic.Uint64
	foreign atomic.Uint64
}

type switchBox struct{ PollingSwitch }

var _ api.KernelOps = (*Hosted)(nil)

// HostedOption configures a Hosted kernel.
type HostedOption func(*Hosted)

// WithLogger sets the logger used for contract violations.
func WithLogger(logger *logiface.Logger[logiface.Event]) HostedOption {
	return func(h *Hosted) { h.logger = logger }
}

// WithPollingSwitch forwards SetPollingMode to sw.
func WithPollingSwitch(sw PollingSwitch) HostedOption {
	return func(h *Hosted) { h.SetPollingSwitch(sw) }
}

// NewHosted creates a kernel binding with no registered threads.
func NewHosted(opts ...HostedOption) *Hosted {
	h := &Hosted{
		tid:     currentTID,
		threads: make(map[api.ThreadID]*thread),
		arms:    make(map[uint64]api.ThreadID),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetPollingSwitch replaces the polling-mode target. Nil detaches it.
func (h *Hosted) SetPollingSwitch(sw PollingSwitch) {
	if sw == nil {
		h.sw.Store(nil)
		return
	}
	h.sw.Store(&switchBox{sw})
}

// LockThread locks the calling goroutine to its OS thread, registers the
// thread and, when cpu >= 0, pins it to that CPU. The returned release
// unregisters the thread; a pinned thread stays locked so the runtime
// retires it with the goroutine instead of reusing it.
func (h *Hosted) LockThread(cpu int) (release func(), err error) {
	runtime.LockOSThread()
	if cpu >= 0 {
		if err := affinity.Pin(cpu); err != nil {
			runtime.UnlockOSThread()
			return nil, err
		}
	}
	tid := h.CurrentThread()
	return func() {
		h.Forget(tid)
		if cpu < 0 {
			runtime.UnlockOSThread()
		}
	}, nil
}

// Forget unregisters tid and releases its parker.
func (h *Hosted) Forget(tid api.ThreadID) {
	h.mu.Lock()
	th := h.threads[tid]
	delete(h.threads, tid)
	h.mu.Unlock()
	if th != nil {
		if err := th.close(); err != nil {
			h.logger.Warning().Err(err).Int64("tid", int64(tid)).Log("kernel: close parker")
		}
	}
}

// Close unregisters every thread.
func (h *Hosted) Close() error {
	h.mu.Lock()
	threads := h.threads
	h.threads = make(map[api.ThreadID]*thread)
	h.mu.Unlock()
	for _, th := range threads {
		_ = th.close()
	}
	return nil
}

// CurrentThread implements api.KernelOps. The calling thread is registered
// on first use.
func (h *Hosted) CurrentThread() api.ThreadID {
	tid := h.tid()
	h.self(tid)
	return tid
}

func (h *Hosted) self(tid api.ThreadID) *thread {
	h.mu.RLock()
	th := h.threads[tid]
	h.mu.RUnlock()
	if th != nil {
		return th
	}

	p, err := newParker()
	if err != nil {
		h.logger.Warning().Err(err).Int64("tid", int64(tid)).Log("kernel: falling back to channel parker")
		p = newChanParker()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing := h.threads[tid]; existing != nil {
		_ = p.close()
		return existing
	}
	th = &thread{p: p}
	h.threads[tid] = th
	return th
}

func (h *Hosted) lookup(tid api.ThreadID) *thread {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.threads[tid]
}

// BlockWithTimeout implements api.KernelOps.
func (h *Hosted) BlockWithTimeout(ms uint64) {
	tid := h.tid()
	th := h.self(tid)
	th.timeout = time.Duration(ms) * time.Millisecond
	th.armed.Store(true)

	gid := concurrency.GoroutineID()
	h.mu.Lock()
	h.arms[gid] = tid
	h.mu.Unlock()
}

// Yield implements api.KernelOps. After BlockWithTimeout the thread parks
// until woken or until the timeout; otherwise it yields the CPU once.
func (h *Hosted) Yield() {
	tid := h.tid()
	gid := concurrency.GoroutineID()
	h.mu.Lock()
	armedOn, armed := h.arms[gid]
	delete(h.arms, gid)
	th := h.threads[tid]
	h.mu.Unlock()

	if armed && armedOn != tid {
		h.foreign.Add(1)
		h.logger.Err().
			Int64("tid", int64(tid)).
			Int64("armed_tid", int64(armedOn)).
			Log("kernel: yield on a different thread than its block, driver must hold LockThread")
		if other := h.lookup(armedOn); other != nil {
			other.armed.Store(false)
		}
	}

	if th == nil || !th.armed.CompareAndSwap(true, false) {
		yieldCPU()
		return
	}
	h.parks.Add(1)
	if err := th.park(th.timeout); err != nil {
		h.logger.Err().Err(err).Log("kernel: park failed")
	}
}

// WakeThread implements api.KernelOps. Waking an unregistered thread is a
// contract violation: it is logged and ignored.
func (h *Hosted) WakeThread(tid api.ThreadID) {
	th := h.lookup(tid)
	if th == nil {
		h.strayed.Add(1)
		h.logger.Err().Int64("tid", int64(tid)).Log("kernel: wake for unknown thread")
		return
	}
	h.wakes.Add(1)
	if err := th.unpark(); err != nil {
		h.logger.Err().Err(err).Int64("tid", int64(tid)).Log("kernel: unpark failed")
	}
}

// SetPollingMode implements api.KernelOps.
func (h *Hosted) SetPollingMode(enabled bool) {
	h.polling.Store(enabled)
	if box := h.sw.Load(); box != nil {
		box.SetPollingMode(enabled)
	}
}

// Polling reports the last polling mode set.
func (h *Hosted) Polling() bool { return h.polling.Load() }

// Stats returns park, wake and stray-wake counts.
func (h *Hosted) Stats() (parks, wakes, strayed uint64) {
	return h.parks.Load(), h.wakes.Load(), h.strayed.Load()
}

// ForeignYields counts Yield calls that ran on a different thread than the
// BlockWithTimeout that armed them.
func (h *Hosted) ForeignYields() uint64 { return h.foreign.Load() }

// RegisterProbes exposes kernel counters through dbg.
func (h *Hosted) RegisterProbes(dbg api.Debug) {
	dbg.RegisterProbe("kernel.threads", func() any {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.threads)
	})
	dbg.RegisterProbe("kernel.polling", func() any { return h.Polling() })
	dbg.RegisterProbe("kernel.parks", func() any { return h.parks.Load() })
	dbg.RegisterProbe("kernel.wakes", func() any { return h.wakes.Load() })
	dbg.RegisterProbe("kernel.stray_wakes", func() any { return h.strayed.Load() })
	dbg.RegisterProbe("kernel.foreign_yields", func() any { return h.foreign.Load() })
}

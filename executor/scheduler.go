// File: executor/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler owns the ready queue and the kernel capability. It replaces a
// process-wide queue singleton: whoever drives the networking subsystem
// constructs one and passes it to Spawn, RunPass and Drive.

package executor

import (
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-netexec/api"
	"github.com/momentics/hioload-netexec/control"
	"github.com/momentics/hioload-netexec/internal/concurrency"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/momentics/hioload-netexec/executor"

// Scheduler is a single-consumer executor bound to one KernelOps.
//
// Spawn and task wakers are safe from any goroutine. RunPass and Drive are
// consumer operations: only one may be active at a time.
type Scheduler struct {
	kernel  api.KernelOps
	oracle  api.DelayOracle
	clock   api.Clock
	logger  *logiface.Logger[logiface.Event]
	tracer  trace.Tracer
	metrics *control.MetricsRegistry

	ready    *concurrency.MPSCQueue[*task]
	deferred *queue.Queue // consumer-only, holds *task

	consumer  atomic.Bool
	owner     atomic.Uint64 // goroutine holding the consumer role
	notifier  atomic.Pointer[Notifier]
	threshold atomic.Int64
	nextID    atomic.Uint64
	stats     counters
}

// New creates a Scheduler on top of kernel.
func New(kernel api.KernelOps, opts ...Option) (*Scheduler, error) {
	if kernel == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "executor: nil kernel").WithCause(api.ErrInvalidArgument)
	}
	cfg := schedulerOptions{
		oracle:    api.IdleOracle,
		threshold: DefaultParkThreshold,
	}
	if c, ok := kernel.(api.Clock); ok {
		cfg.clock = c
	} else {
		cfg.clock = api.SystemClock{}
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScheduler(&cfg); err != nil {
			return nil, err
		}
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}

	s := &Scheduler{
		kernel:   kernel,
		oracle:   cfg.oracle,
		clock:    cfg.clock,
		logger:   cfg.logger,
		tracer:   cfg.tracer,
		metrics:  cfg.metrics,
		ready:    concurrency.NewMPSCQueue[*task](),
		deferred: queue.New(),
	}
	s.threshold.Store(int64(cfg.threshold))
	return s, nil
}

// schedule pushes a runnable task and nudges the active driver, if any.
func (s *Scheduler) schedule(t *task) {
	s.ready.Push(t)
	if n := s.notifier.Load(); n != nil {
		n.Notify()
	}
}

// Len returns the number of runnable entries in the ready queue.
func (s *Scheduler) Len() int { return s.ready.Len() }

// Stats returns a snapshot of the cumulative counters.
func (s *Scheduler) Stats() Stats { return s.stats.snapshot() }

// ParkThreshold returns the current park threshold.
func (s *Scheduler) ParkThreshold() time.Duration {
	return time.Duration(s.threshold.Load())
}

// SetParkThreshold changes the park threshold; it takes effect on the next
// driver iteration. Negative values are clamped to zero.
func (s *Scheduler) SetParkThreshold(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.threshold.Store(int64(d))
}

// BindConfig applies the store's executor section now and on every reload.
// Once bound, the store owns the park threshold: its value replaces one set
// with WithParkThreshold, and a zero threshold makes the driver park on any
// positive network delay.
func (s *Scheduler) BindConfig(store *control.ConfigStore) {
	apply := func(cfg control.Config) {
		if cfg.Executor.ParkThreshold != s.ParkThreshold() {
			s.SetParkThreshold(cfg.Executor.ParkThreshold)
			s.logger.Info().
				Dur("park_threshold", cfg.Executor.ParkThreshold).
				Log("executor: park threshold reloaded")
		}
	}
	apply(store.Snapshot())
	store.OnReload(apply)
}

// RegisterProbes exposes scheduler state through dbg.
func (s *Scheduler) RegisterProbes(dbg api.Debug) {
	dbg.RegisterProbe("executor.ready_len", func() any { return s.Len() })
	dbg.RegisterProbe("executor.park_threshold", func() any { return s.ParkThreshold().String() })
	dbg.RegisterProbe("executor.stats", func() any { return s.Stats() })
	dbg.RegisterProbe("executor.driving", func() any { return s.notifier.Load() != nil })
}

func (s *Scheduler) acquire(op string) error {
	if !s.consumer.CompareAndSwap(false, true) {
		return busyError(op)
	}
	s.owner.Store(concurrency.GoroutineID())
	return nil
}

func (s *Scheduler) release() {
	s.owner.Store(0)
	s.consumer.Store(false)
}

// onConsumer reports whether the caller is the goroutine running RunPass or
// Drive.
func (s *Scheduler) onConsumer() bool {
	id := s.owner.Load()
	return id != 0 && id == concurrency.GoroutineID()
}

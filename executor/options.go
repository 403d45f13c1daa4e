// File: executor/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package executor

import (
	"context"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-netexec/api"
	"github.com/momentics/hioload-netexec/control"
	"go.opentelemetry.io/otel/trace"
)

// DefaultParkThreshold is the network delay above which Drive commits to a
// real kernel park instead of busy polling. Delays are compared in whole
// milliseconds and the threshold itself is exclusive.
const DefaultParkThreshold = 100 * time.Millisecond

type schedulerOptions struct {
	oracle    api.DelayOracle
	clock     api.Clock
	threshold time.Duration
	logger    *logiface.Logger[logiface.Event]
	tracer    trace.Tracer
	metrics   *control.MetricsRegistry
}

// Option configures a Scheduler.
type Option interface {
	applyScheduler(*schedulerOptions) error
}

type optionFunc func(*schedulerOptions) error

func (f optionFunc) applyScheduler(o *schedulerOptions) error { return f(o) }

// WithOracle sets the network delay oracle. Defaults to api.IdleOracle.
func WithOracle(oracle api.DelayOracle) Option {
	return optionFunc(func(o *schedulerOptions) error {
		if oracle == nil {
			return api.NewError(api.ErrCodeInvalidArgument, "executor: nil oracle").WithCause(api.ErrInvalidArgument)
		}
		o.oracle = oracle
		return nil
	})
}

// WithClock sets the driver's time source. Defaults to the kernel when it
// implements api.Clock, api.SystemClock otherwise.
func WithClock(clock api.Clock) Option {
	return optionFunc(func(o *schedulerOptions) error {
		if clock == nil {
			return api.NewError(api.ErrCodeInvalidArgument, "executor: nil clock").WithCause(api.ErrInvalidArgument)
		}
		o.clock = clock
		return nil
	})
}

// WithParkThreshold overrides DefaultParkThreshold.
func WithParkThreshold(d time.Duration) Option {
	return optionFunc(func(o *schedulerOptions) error {
		if d < 0 {
			return api.NewError(api.ErrCodeInvalidArgument, "executor: negative park threshold").
				WithCause(api.ErrInvalidArgument).
				WithContext("threshold", d)
		}
		o.threshold = d
		return nil
	})
}

// WithLogger attaches a structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return optionFunc(func(o *schedulerOptions) error {
		o.logger = logger
		return nil
	})
}

// WithTracer sets the tracer used for Drive spans.
func WithTracer(tracer trace.Tracer) Option {
	return optionFunc(func(o *schedulerOptions) error {
		o.tracer = tracer
		return nil
	})
}

// WithMetrics publishes executor counters to mr after every Drive.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return optionFunc(func(o *schedulerOptions) error {
		o.metrics = mr
		return nil
	})
}

type driveOptions struct {
	ctx        context.Context
	timeout    time.Duration
	hasTimeout bool
}

// DriveOption configures a single Drive call.
type DriveOption func(*driveOptions)

// WithTimeout bounds Drive. Without it Drive never returns ErrTimeout.
func WithTimeout(d time.Duration) DriveOption {
	return func(o *driveOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}

// WithContext sets the parent context of the Drive trace span. The context's
// cancellation is not observed; use WithTimeout to bound Drive.
func WithContext(ctx context.Context) DriveOption {
	return func(o *driveOptions) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

func resolveDriveOptions(opts []DriveOption) driveOptions {
	o := driveOptions{ctx: context.Background()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// File: executor/drive.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking driver. Runs background tasks, polls the caller's future, and
// decides when to hand the execution context back to the kernel.
//
// Polling mode is true whenever the driver itself may service the network
// (passes, future polls, oracle queries) and false only across the kernel
// park, since interrupt delivery and self-polling must not run together on
// the same device.

package executor

import (
	"time"

	"github.com/momentics/hioload-netexec/api"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Drive polls f to completion on the calling thread, running s's tasks
// between polls. With WithTimeout it returns an error matching ErrTimeout
// once the elapsed time reaches the timeout; without it, it only returns when
// f completes. A panic from f propagates after polling mode is cleared.
//
// Drive parks the calling thread, so with a thread-based kernel the caller
// must stay on one OS thread for the whole call (kernel.Hosted.LockThread).
func Drive[T any](s *Scheduler, f Future[T], opts ...DriveOption) (val T, err error) {
	if f == nil {
		return val, api.NewError(api.ErrCodeInvalidArgument, "executor: nil future").WithCause(api.ErrInvalidArgument)
	}
	if err = s.acquire("drive"); err != nil {
		return val, err
	}
	defer s.release()

	o := resolveDriveOptions(opts)
	_, span := s.tracer.Start(o.ctx, "executor.drive")
	k := s.kernel
	n := NewNotifier(k)
	s.notifier.Store(n)
	s.stats.drives.Add(1)

	var passes, parks int
	outcome := "panic"
	defer func() {
		k.SetPollingMode(false)
		s.notifier.Store(nil)
		s.stats.notifies.Add(n.Notifies())
		s.stats.wakes.Add(n.Wakes())
		n.teardown(s.logger)
		s.Stats().publish(s.metrics)

		span.SetAttributes(
			attribute.String("executor.outcome", outcome),
			attribute.Int("executor.passes", passes),
			attribute.Int("executor.parks", parks),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	k.SetPollingMode(true)
	start := s.clock.Now()
	for {
		s.runPass()
		passes++

		if v, ok := f.Poll(n); ok {
			outcome = "ready"
			return v, nil
		}

		now := s.clock.Now()
		elapsed := now.Sub(start)
		if o.hasTimeout && elapsed >= o.timeout {
			outcome = "timeout"
			s.stats.timeouts.Add(1)
			return val, api.NewError(api.ErrCodeTimeout, "executor: drive timed out").
				WithCause(ErrTimeout).
				WithContext("timeout", o.timeout).
				WithContext("elapsed", elapsed)
		}

		delay, ok := s.oracle.NetworkDelay(now)
		if !ok {
			// an idle stack still needs frequent servicing
			delay = 0
		}

		if delay.Milliseconds() > s.ParkThreshold().Milliseconds() && !n.Reset() {
			ms := uint64(delay.Milliseconds())
			if o.hasTimeout {
				ms = min(ms, ceilMillis(o.timeout-elapsed))
			}
			s.logger.Debug().
				Dur("delay", delay).
				Uint64("block_ms", ms).
				Log("executor: parking")

			k.BlockWithTimeout(ms)
			k.SetPollingMode(false)
			k.Yield()
			k.SetPollingMode(true)

			parks++
			s.stats.parks.Add(1)
			continue
		}
		s.stats.spins.Add(1)
	}
}

func ceilMillis(d time.Duration) uint64 {
	if d <= 0 {
		return 1
	}
	return uint64((d + time.Millisecond - 1) / time.Millisecond)
}

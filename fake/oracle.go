// Package fake
// Author: momentics <momentics@gmail.com>
//
// Scripted network delay oracles.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-netexec/api"
)

// FixedDelay always reports d.
func FixedDelay(d time.Duration) api.DelayOracle {
	return api.DelayOracleFunc(func(time.Time) (time.Duration, bool) { return d, true })
}

// Oracle wraps another oracle, records every query, and counts queries made
// while the kernel was not in polling mode.
type Oracle struct {
	Kernel *Kernel
	Next   api.DelayOracle

	mu         sync.Mutex
	calls      []time.Time
	violations int
}

// NetworkDelay implements api.DelayOracle.
func (o *Oracle) NetworkDelay(now time.Time) (time.Duration, bool) {
	o.mu.Lock()
	o.calls = append(o.calls, now)
	if o.Kernel != nil && !o.Kernel.Polling() {
		o.violations++
	}
	o.mu.Unlock()
	next := o.Next
	if next == nil {
		next = api.IdleOracle
	}
	return next.NetworkDelay(now)
}

// Calls returns the time of every query.
func (o *Oracle) Calls() []time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]time.Time(nil), o.calls...)
}

// Violations counts queries made outside polling mode.
func (o *Oracle) Violations() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.violations
}

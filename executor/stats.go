// File: executor/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package executor

import (
	"sync/atomic"

	"github.com/momentics/hioload-netexec/control"
)

// Stats is a snapshot of the scheduler's cumulative counters.
type Stats struct {
	Spawned  uint64
	Passes   uint64
	Runs     uint64
	Deferred uint64
	Panics   uint64
	Drives   uint64
	Parks    uint64
	Spins    uint64
	Timeouts uint64
	Notifies uint64
	Wakes    uint64
}

type counters struct {
	spawned, passes, runs, deferred, panics atomic.Uint64
	drives, parks, spins, timeouts          atomic.Uint64
	notifies, wakes                         atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Spawned:  c.spawned.Load(),
		Passes:   c.passes.Load(),
		Runs:     c.runs.Load(),
		Deferred: c.deferred.Load(),
		Panics:   c.panics.Load(),
		Drives:   c.drives.Load(),
		Parks:    c.parks.Load(),
		Spins:    c.spins.Load(),
		Timeouts: c.timeouts.Load(),
		Notifies: c.notifies.Load(),
		Wakes:    c.wakes.Load(),
	}
}

// publish copies the snapshot into the registry under executor.* keys.
func (s Stats) publish(mr *control.MetricsRegistry) {
	if mr == nil {
		return
	}
	mr.SetMany(map[string]any{
		"executor.spawned":  s.Spawned,
		"executor.passes":   s.Passes,
		"executor.runs":     s.Runs,
		"executor.deferred": s.Deferred,
		"executor.panics":   s.Panics,
		"executor.drives":   s.Drives,
		"executor.parks":    s.Parks,
		"executor.spins":    s.Spins,
		"executor.timeouts": s.Timeouts,
		"executor.notifies": s.Notifies,
		"executor.wakes":    s.Wakes,
	})
}

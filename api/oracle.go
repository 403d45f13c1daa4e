// File: api/oracle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Read-only view of the network stack's timer bookkeeping.

package api

import "time"

// DelayOracle reports the minimum wait until the next network event that
// needs servicing. ok is false when nothing is scheduled.
type DelayOracle interface {
	NetworkDelay(now time.Time) (delay time.Duration, ok bool)
}

// DelayOracleFunc adapts a plain function to DelayOracle.
type DelayOracleFunc func(now time.Time) (time.Duration, bool)

// NetworkDelay implements DelayOracle.
func (f DelayOracleFunc) NetworkDelay(now time.Time) (time.Duration, bool) { return f(now) }

// IdleOracle never has anything scheduled.
var IdleOracle DelayOracle = DelayOracleFunc(func(time.Time) (time.Duration, bool) { return 0, false })

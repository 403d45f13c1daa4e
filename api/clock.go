// File: api/clock.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "time"

// Clock is the monotonic time source of the blocking driver.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host monotonic clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// CPU pinning for the thread that drives the executor. Platform-specific
// implementations live in files guarded by build tags.

package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-netexec/api"
)

// Pin restricts the calling OS thread to logical CPU cpu. The caller must
// hold runtime.LockOSThread, otherwise the goroutine may migrate away from
// the pinned thread.
func Pin(cpu int) error {
	if cpu < 0 || cpu >= runtime.NumCPU() {
		return api.NewError(api.ErrCodeInvalidArgument, fmt.Sprintf("affinity: cpu %d out of range", cpu)).
			WithCause(api.ErrInvalidArgument).
			WithContext("cpus", runtime.NumCPU())
	}
	return pinPlatform(cpu)
}

// File: api/kernel.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Kernel boundary consumed by the executor. Production code binds it to real
// scheduler primitives (see package kernel), tests bind it to a simulated
// clock and trace (see package fake).

package api

// ThreadID is a stable identifier of a kernel execution context.
type ThreadID uint32

// KernelOps is the capability set the blocking driver depends on.
//
// Implementations must keep the contracts below bit-for-bit, the executor
// does not retry or second-guess them.
type KernelOps interface {
	// CurrentThread returns the identity of the calling execution context.
	CurrentThread() ThreadID

	// Yield cooperatively relinquishes the execution context and returns when
	// rescheduled. If BlockWithTimeout was called before, the context stays
	// parked until woken or until the timeout elapses.
	Yield()

	// WakeThread is an idempotent, best-effort nudge. Safe from any context,
	// including interrupt-level code.
	WakeThread(tid ThreadID)

	// SetPollingMode toggles NIC delivery between self-polling (true) and
	// interrupt-driven delivery (false).
	SetPollingMode(enabled bool)

	// BlockWithTimeout marks the calling context as blocked for at most ms
	// milliseconds. The park itself takes effect on the next Yield.
	BlockWithTimeout(ms uint64)
}

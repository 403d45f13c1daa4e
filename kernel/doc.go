// Package kernel binds api.KernelOps to a hosted operating system.
//
// Each driving goroutine must be locked to its OS thread (see LockThread):
// thread identity, parking and waking all act on the OS thread, not on the
// goroutine. A wake delivered while the target thread is running is kept as
// a permit and ends that thread's next park early, so a wake racing with the
// decision to park is never lost.
package kernel

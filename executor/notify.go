// File: executor/notify.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Wake coalescer. Converts any number of wake signals into at most one kernel
// wakeup between two resets. The reset-before-park sequence in Drive is what
// keeps a wake that races with the decision to sleep from being lost.

package executor

import (
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-netexec/api"
)

// Notifier is bound to one kernel thread. It implements Waker.
type Notifier struct {
	kernel  api.KernelOps
	thread  api.ThreadID
	pending atomic.Bool

	notifies atomic.Uint64
	wakes    atomic.Uint64
}

// NewNotifier binds a Notifier to the calling thread.
func NewNotifier(kernel api.KernelOps) *Notifier {
	return &Notifier{
		kernel: kernel,
		thread: kernel.CurrentThread(),
	}
}

// Notify records a wake. Only the first Notify since the last Reset reaches
// the kernel. Safe from any goroutine.
func (n *Notifier) Notify() {
	n.notifies.Add(1)
	if !n.pending.Swap(true) {
		n.wakes.Add(1)
		n.kernel.WakeThread(n.thread)
	}
}

// Wake implements Waker.
func (n *Notifier) Wake() { n.Notify() }

// Reset clears the pending flag and reports whether a wake was pending.
func (n *Notifier) Reset() bool { return n.pending.Swap(false) }

// Pending reports the flag without clearing it.
func (n *Notifier) Pending() bool { return n.pending.Load() }

// Thread returns the bound thread identity.
func (n *Notifier) Thread() api.ThreadID { return n.thread }

// Notifies returns how many wake signals were received.
func (n *Notifier) Notifies() uint64 { return n.notifies.Load() }

// Wakes returns how many kernel wakeups were issued.
func (n *Notifier) Wakes() uint64 { return n.wakes.Load() }

// teardown is the explicit end of a Notifier's life at the end of Drive.
func (n *Notifier) teardown(logger *logiface.Logger[logiface.Event]) {
	logger.Debug().
		Int64("thread", int64(n.thread)).
		Uint64("notifies", n.Notifies()).
		Uint64("wakes", n.Wakes()).
		Log("executor: notifier released")
}

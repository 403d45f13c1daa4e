// Package executor
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-consumer cooperative executor that drives network I/O futures while
// the host kernel toggles NIC interrupt delivery ("polling mode").
//
// Components, leaf first:
//   - Notifier: coalesces wake signals into at most one kernel wakeup per park.
//   - Scheduler: owns the lock-free ready queue.
//   - Spawn: wraps a Future into a task and its JoinHandle.
//   - RunPass: drains a bounded snapshot of the ready queue.
//   - Drive: polls a top-level future to completion, deciding between a real
//     kernel park and busy polling.
//
// Only Drive ever yields the execution context to the kernel. Everything else
// suspends cooperatively by returning "not ready" from Poll.
package executor

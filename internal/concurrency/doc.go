// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Lock-free primitives backing the executor. MPSCQueue is the ready queue:
// any goroutine may push, exactly one consumer pops.
package concurrency

// File: executor/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package executor

import (
	"fmt"

	"github.com/momentics/hioload-netexec/api"
)

var (
	// ErrTimeout is matched (errors.Is) by the error Drive returns when the
	// caller's deadline passes before the future completes.
	ErrTimeout = api.ErrOperationTimeout

	// ErrBusy is returned when another Drive or RunPass is already consuming
	// the scheduler's ready queue.
	ErrBusy = api.ErrConsumerBusy
)

// PanicError is the value a task completes with when its Poll panicked.
// Polling the task's JoinHandle re-panics with it.
type PanicError struct {
	TaskID uint64
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("executor: task %d panicked: %v", e.TaskID, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func busyError(op string) error {
	return api.NewError(api.ErrCodeBusy, "executor: "+op+": ready queue already has a consumer").
		WithCause(ErrBusy)
}

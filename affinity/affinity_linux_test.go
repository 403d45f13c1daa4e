//go:build linux

package affinity

import (
	"runtime"
	"testing"

	"github.com/momentics/hioload-netexec/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPin_RejectsOutOfRange(t *testing.T) {
	assert.ErrorIs(t, Pin(-1), api.ErrInvalidArgument)
	assert.ErrorIs(t, Pin(runtime.NumCPU()), api.ErrInvalidArgument)
}

func TestPin_RestrictsCallingThread(t *testing.T) {
	type result struct {
		target int
		after  []int
		err    error
	}
	done := make(chan result, 1)
	go func() {
		// never unlocked: the runtime retires the pinned thread with the goroutine
		runtime.LockOSThread()
		before, err := Current()
		if err != nil || len(before) == 0 {
			done <- result{err: err}
			return
		}
		target := before[len(before)-1]
		if err := Pin(target); err != nil {
			done <- result{err: err}
			return
		}
		after, err := Current()
		done <- result{target: target, after: after, err: err}
	}()

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, []int{r.target}, r.after)
}

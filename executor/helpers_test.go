package executor

import (
	"sync"
	"testing"

	"github.com/momentics/hioload-netexec/fake"
	"github.com/stretchr/testify/require"
)

func newScheduler(t *testing.T, k *fake.Kernel, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(k, opts...)
	require.NoError(t, err)
	return s
}

// gate is a future completed from outside, e.g. by a simulated interrupt.
type gate[T any] struct {
	mu    sync.Mutex
	val   T
	done  bool
	waker Waker
	polls int
}

func (g *gate[T]) Poll(w Waker) (T, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.polls++
	if g.done {
		return g.val, true
	}
	g.waker = w
	var zero T
	return zero, false
}

// open completes the gate and wakes the last poller.
func (g *gate[T]) open(v T) {
	g.mu.Lock()
	g.val, g.done = v, true
	w := g.waker
	g.mu.Unlock()
	if w != nil {
		w.Wake()
	}
}

func (g *gate[T]) pollCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.polls
}

// afterPolls completes on the n-th poll without ever waking.
func afterPolls[T any](n int, v T) Future[T] {
	polls := 0
	return PollFunc[T](func(Waker) (T, bool) {
		polls++
		if polls >= n {
			return v, true
		}
		var zero T
		return zero, false
	})
}

// File: executor/spawn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package executor

// Spawn wraps f into a task and pushes it onto s's ready queue, so a fresh
// task always gets one run without an external wake. f and T must be safe to
// hand to the goroutine that drives s.
func Spawn[T any](s *Scheduler, f Future[T]) *JoinHandle[T] {
	out := &output[T]{fut: f}
	t := &task{
		id:    s.nextID.Add(1),
		sched: s,
		body:  out,
	}
	t.state.Store(stateScheduled)
	s.stats.spawned.Add(1)
	s.schedule(t)
	return &JoinHandle[T]{t: t, out: out}
}

// SpawnFunc is Spawn for a bare poll function.
func SpawnFunc[T any](s *Scheduler, f func(w Waker) (T, bool)) *JoinHandle[T] {
	return Spawn[T](s, PollFunc[T](f))
}

// File: executor/pass.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package executor

// RunPass drains the ready queue once. It runs at most the number of entries
// queued when it was entered; anything enqueued while the pass runs waits for
// the next call. Returns the number of entries run.
func (s *Scheduler) RunPass() (int, error) {
	if err := s.acquire("run pass"); err != nil {
		return 0, err
	}
	defer s.release()
	return s.runPass(), nil
}

func (s *Scheduler) runPass() int {
	n := s.ready.Len()
	ran := 0
	for ran < n {
		t, ok := s.ready.Pop()
		if !ok {
			// a producer swapped the head but has not linked its node yet
			break
		}
		ran++
		rewake, notify, p := t.run()
		if p != nil {
			s.stats.panics.Add(1)
			s.logger.Err().
				Uint64("task", p.TaskID).
				Str("panic", p.Error()).
				Str("stack", string(p.Stack)).
				Log("executor: task panicked")
		}
		switch {
		case notify:
			s.schedule(t)
		case rewake:
			s.deferred.Add(t)
		}
	}

	// self-wakes are delivered once the pass is over; they come from the
	// consumer itself, so the driver is not notified
	deferred := s.deferred.Length()
	for s.deferred.Length() > 0 {
		s.ready.Push(s.deferred.Remove().(*task))
	}

	s.stats.passes.Add(1)
	s.stats.runs.Add(uint64(ran))
	s.stats.deferred.Add(uint64(deferred))
	return ran
}

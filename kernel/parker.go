// File: kernel/parker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package kernel

import "time"

// parker parks one thread. unpark stores at most one permit; park consumes
// it, returning early if one is present.
type parker interface {
	park(timeout time.Duration) error
	unpark() error
	close() error
}

type chanParker struct {
	permit chan struct{}
}

func newChanParker() *chanParker {
	return &chanParker{permit: make(chan struct{}, 1)}
}

func (p *chanParker) park(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.permit:
	case <-timer.C:
	}
	return nil
}

func (p *chanParker) unpark() error {
	select {
	case p.permit <- struct{}{}:
	default:
	}
	return nil
}

func (p *chanParker) close() error { return nil }

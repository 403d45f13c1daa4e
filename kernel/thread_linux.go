//go:build linux

// File: kernel/thread_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux thread identity and eventfd-based parking.

package kernel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"fortio.org/safecast"
	"github.com/momentics/hioload-netexec/api"
	"golang.org/x/sys/unix"
)

func currentTID() api.ThreadID {
	tid, err := safecast.Conv[uint32](unix.Gettid())
	if err != nil {
		panic(fmt.Sprintf("kernel: thread id out of range: %v", err))
	}
	return api.ThreadID(tid)
}

func yieldCPU() { _, _, _ = unix.Syscall(unix.SYS_SCHED_YIELD, 0, 0, 0) }

// eventfdParker parks in poll(2) on an eventfd; unpark increments it.
type eventfdParker struct {
	fd   int
	fd32 int32
}

func newParker() (parker, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("kernel: eventfd: %w", err)
	}
	fd32, err := safecast.Conv[int32](fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("kernel: eventfd: %w", err)
	}
	return &eventfdParker{fd: fd, fd32: fd32}, nil
}

func (p *eventfdParker) park(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: p.fd32, Events: unix.POLLIN}}
	for {
		ms := int(time.Until(deadline).Milliseconds())
		if ms < 0 {
			ms = 0
		}
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("kernel: poll eventfd: %w", err)
		}
		if n > 0 {
			return p.drain()
		}
		return nil
	}
}

func (p *eventfdParker) drain() error {
	var buf [8]byte
	_, err := unix.Read(p.fd, buf[:])
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("kernel: read eventfd: %w", err)
	}
	return nil
}

func (p *eventfdParker) unpark() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(p.fd, buf[:])
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("kernel: write eventfd: %w", err)
	}
	return nil
}

func (p *eventfdParker) close() error { return unix.Close(p.fd) }

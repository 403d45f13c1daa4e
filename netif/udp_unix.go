//go:build unix

// File: netif/udp_unix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netif

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-netexec/api"
	"github.com/momentics/hioload-netexec/executor"
	"golang.org/x/sys/unix"
)

// irqPollInterval bounds how long the interrupt line sleeps in poll(2)
// before re-checking mode changes and Close.
const irqPollInterval = 20 * time.Millisecond

// UDPEndpoint is a bound, non-blocking IPv4 UDP socket.
type UDPEndpoint struct {
	fd     int
	fd32   int32
	local  netip.AddrPort
	logger *logiface.Logger[logiface.Event]

	mu      sync.Mutex
	cond    *sync.Cond
	waiters []*waiter
	polling bool
	armed   bool
	closed  bool
	done    chan struct{}

	interrupts atomic.Uint64
	received   atomic.Uint64
	sent       atomic.Uint64
}

// Option configures an endpoint.
type Option func(*UDPEndpoint)

// WithLogger sets the endpoint logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(e *UDPEndpoint) { e.logger = logger }
}

// ListenUDP binds addr ("host:port", IPv4). The endpoint starts with
// polling mode off and its interrupt line armed.
func ListenUDP(addr string, opts ...Option) (*UDPEndpoint, error) {
	ua, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("netif: resolve %q: %w", addr, err)
	}
	sa := &unix.SockaddrInet4{Port: ua.Port}
	if ip4 := ua.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, fmt.Errorf("netif: socket: %w", err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netif: set nonblock: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netif: SO_REUSEADDR: %w", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netif: bind %s: %w", addr, err)
	}
	bound, err := unix.Getsockname(fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netif: getsockname: %w", err)
	}

	fd32, err := safecast.Conv[int32](fd)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netif: socket: %w", err)
	}

	e := &UDPEndpoint{
		fd:    fd,
		fd32:  fd32,
		local: addrPort(bound),
		armed: true,
		done:  make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	go e.irqLoop()
	return e, nil
}

// LocalAddr returns the bound address.
func (e *UDPEndpoint) LocalAddr() netip.AddrPort { return e.local }

// SetPollingMode switches delivery. Turning polling off re-arms the
// interrupt line, which fires at most once per interrupt-enabled period.
func (e *UDPEndpoint) SetPollingMode(enabled bool) {
	e.mu.Lock()
	e.polling = enabled
	if !enabled {
		e.armed = true
	}
	e.mu.Unlock()
	e.cond.Broadcast()
}

// waiter is a receive future's registration; it is queued at most once.
type waiter struct {
	w      executor.Waker
	queued bool
}

// Recv returns a future receiving one datagram into buf.
func (e *UDPEndpoint) Recv(buf []byte) executor.Future[Packet] {
	slot := new(waiter)
	return executor.PollFunc[Packet](func(w executor.Waker) (Packet, bool) {
		if e.isClosed() {
			return Packet{Err: api.ErrClosed}, true
		}
		n, from, err := unix.Recvfrom(e.fd, buf, 0)
		switch {
		case err == nil:
			e.received.Add(1)
			return Packet{N: n, From: addrPort(from)}, true
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			if e.register(slot, w) {
				return Packet{}, false
			}
			return Packet{Err: api.ErrClosed}, true
		default:
			return Packet{Err: fmt.Errorf("netif: recvfrom: %w", err)}, true
		}
	})
}

// SendTo writes one datagram. The socket is non-blocking: a full send
// buffer is reported as an error matching unix.EAGAIN.
func (e *UDPEndpoint) SendTo(b []byte, to netip.AddrPort) error {
	if !to.Addr().Is4() {
		return api.NewError(api.ErrCodeInvalidArgument, "netif: destination must be IPv4").
			WithCause(api.ErrInvalidArgument).
			WithContext("to", to.String())
	}
	sa := &unix.SockaddrInet4{Port: int(to.Port()), Addr: to.Addr().As4()}
	if err := unix.Sendto(e.fd, b, 0, sa); err != nil {
		return fmt.Errorf("netif: sendto %s: %w", to, err)
	}
	e.sent.Add(1)
	return nil
}

func (e *UDPEndpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// register points slot at w and queues it for the next readiness signal.
// It reports false once the endpoint is closed.
func (e *UDPEndpoint) register(slot *waiter, w executor.Waker) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	slot.w = w
	if !slot.queued {
		slot.queued = true
		e.waiters = append(e.waiters, slot)
	}
	return true
}

// takeWaitersLocked dequeues every registration. Callers hold e.mu.
func (e *UDPEndpoint) takeWaitersLocked() []executor.Waker {
	wakers := make([]executor.Waker, 0, len(e.waiters))
	for _, slot := range e.waiters {
		slot.queued = false
		wakers = append(wakers, slot.w)
	}
	e.waiters = nil
	return wakers
}

func (e *UDPEndpoint) takeWaiters() []executor.Waker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.takeWaitersLocked()
}

func wakeAll(wakers []executor.Waker) {
	for _, w := range wakers {
		w.Wake()
	}
}

// Service implements netstack.Device: a zero-timeout readiness check run on
// every stack pass.
func (e *UDPEndpoint) Service(time.Time) {
	e.mu.Lock()
	idle := len(e.waiters) == 0
	e.mu.Unlock()
	if idle {
		return
	}
	if ready, _ := e.readable(0); ready {
		wakeAll(e.takeWaiters())
	}
}

func (e *UDPEndpoint) readable(timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: e.fd32, Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return false, nil
		}
		return false, err
	}
	return n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLERR) != 0, nil
}

// irqLoop is the interrupt line. It only watches the socket while polling
// mode is off and it is armed.
func (e *UDPEndpoint) irqLoop() {
	defer close(e.done)
	for {
		e.mu.Lock()
		for !e.closed && (e.polling || !e.armed) {
			e.cond.Wait()
		}
		if e.closed {
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()

		ready, err := e.readable(irqPollInterval)
		if err != nil {
			e.logger.Err().Err(err).Log("netif: interrupt line poll failed")
			time.Sleep(irqPollInterval)
			continue
		}
		if !ready {
			continue
		}

		e.mu.Lock()
		if e.closed || e.polling || !e.armed {
			e.mu.Unlock()
			continue
		}
		e.armed = false
		waiters := e.takeWaitersLocked()
		e.mu.Unlock()

		e.interrupts.Add(1)
		e.logger.Trace().Int("waiters", len(waiters)).Log("netif: interrupt")
		wakeAll(waiters)
	}
}

// Close stops the interrupt line, wakes pending receivers (their futures
// complete with api.ErrClosed) and closes the socket.
func (e *UDPEndpoint) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	waiters := e.takeWaitersLocked()
	e.mu.Unlock()
	e.cond.Broadcast()
	<-e.done

	wakeAll(waiters)
	if err := unix.Close(e.fd); err != nil {
		return fmt.Errorf("netif: close: %w", err)
	}
	return nil
}

// Stats returns interrupt, received and sent counts.
func (e *UDPEndpoint) Stats() (interrupts, received, sent uint64) {
	return e.interrupts.Load(), e.received.Load(), e.sent.Load()
}

// RegisterProbes exposes endpoint counters through dbg.
func (e *UDPEndpoint) RegisterProbes(dbg api.Debug) {
	dbg.RegisterProbe("netif.local", func() any { return e.local.String() })
	dbg.RegisterProbe("netif.interrupts", func() any { return e.interrupts.Load() })
	dbg.RegisterProbe("netif.received", func() any { return e.received.Load() })
	dbg.RegisterProbe("netif.sent", func() any { return e.sent.Load() })
}

func addrPort(sa unix.Sockaddr) netip.AddrPort {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return netip.AddrPort{}
	}
	port, err := safecast.Conv[uint16](in4.Port)
	if err != nil {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(netip.AddrFrom4(in4.Addr), port)
}

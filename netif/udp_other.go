//go:build !unix

// File: netif/udp_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netif

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/momentics/hioload-netexec/api"
	"github.com/momentics/hioload-netexec/executor"
)

// UDPEndpoint is unavailable on this platform.
type UDPEndpoint struct{}

// Option configures an endpoint.
type Option func(*UDPEndpoint)

// WithLogger sets the endpoint logger.
func WithLogger(*logiface.Logger[logiface.Event]) Option { return func(*UDPEndpoint) {} }

// ListenUDP always fails with api.ErrNotSupported.
func ListenUDP(addr string, _ ...Option) (*UDPEndpoint, error) {
	return nil, fmt.Errorf("netif: listen %s: %w", addr, api.ErrNotSupported)
}

func (e *UDPEndpoint) LocalAddr() netip.AddrPort { return netip.AddrPort{} }
func (e *UDPEndpoint) SetPollingMode(bool)       {}
func (e *UDPEndpoint) Service(time.Time)         {}
func (e *UDPEndpoint) Close() error              { return nil }
func (e *UDPEndpoint) RegisterProbes(api.Debug)  {}

func (e *UDPEndpoint) Recv([]byte) executor.Future[Packet] {
	return executor.Ready(Packet{Err: api.ErrNotSupported})
}

func (e *UDPEndpoint) SendTo([]byte, netip.AddrPort) error { return api.ErrNotSupported }

func (e *UDPEndpoint) Stats() (interrupts, received, sent uint64) { return 0, 0, 0 }

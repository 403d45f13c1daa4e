// File: netif/packet.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netif

import "net/netip"

// Packet is the outcome of one receive.
type Packet struct {
	N    int
	From netip.AddrPort
	Err  error
}

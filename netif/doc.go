// Package netif provides a non-blocking UDP endpoint whose receive path
// follows the executor's polling mode: while polling mode is on the endpoint
// is serviced by the network stack on every pass, while it is off a
// dedicated interrupt line watches the socket and wakes waiting receivers.
package netif

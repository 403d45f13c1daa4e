// Package netstack keeps the network stack's time: per-connection timers,
// periodic housekeeping and the attached devices. It is serviced by a
// background executor task and answers the driver's "how long until the
// network needs attention" question through NetworkDelay.
package netstack

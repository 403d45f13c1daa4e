// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics, and debug introspection layer for the
// executor and its network collaborators.
//
// Provides concurrent-safe state handling primitives including:
//   - Typed configuration loaded from TOML, with snapshot reads and reload listeners
//   - SIGHUP-driven hot reload of the configuration file
//   - A metrics registry the executor publishes its counters to
//   - Debug probe registration and state export
package control

// File: cmd/testudp/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Demo program for the UDP interface. Talk to it with
//
//	socat - UDP:localhost:9975
//
// and send a line starting with "exit" to stop it.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "testudp",
		Short:         "Receive UDP datagrams on an interrupt-aware executor",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o.changed = func(name string) bool { return cmd.Flags().Changed(name) }
			return run(cmd.Context(), o, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "TOML configuration file (reloaded on SIGHUP)")
	f.StringVar(&o.addr, "addr", "0.0.0.0:9975", "UDP listen address")
	f.StringVar(&o.logLevel, "log-level", "info", "log level (err, warning, info, debug, trace)")
	f.IntVar(&o.cpu, "cpu", -1, "pin the driver thread to this CPU")
	f.DurationVar(&o.timeout, "timeout", 0, "per-receive drive timeout, 0 waits forever")
	f.DurationVar(&o.parkThreshold, "park-threshold", 0, "override the park threshold")
	f.StringVar(&o.otelEndpoint, "otel.endpoint", "", "OTLP/gRPC collector endpoint")
	f.BoolVar(&o.noColor, "no-color", false, "disable colored output")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

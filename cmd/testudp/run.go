// File: cmd/testudp/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/momentics/hioload-netexec/api"
	"github.com/momentics/hioload-netexec/control"
	"github.com/momentics/hioload-netexec/executor"
	"github.com/momentics/hioload-netexec/internal/logging"
	"github.com/momentics/hioload-netexec/internal/telemetry"
	"github.com/momentics/hioload-netexec/kernel"
	"github.com/momentics/hioload-netexec/netif"
	"github.com/momentics/hioload-netexec/netstack"
)

type options struct {
	configPath    string
	addr          string
	logLevel      string
	cpu           int
	timeout       time.Duration
	parkThreshold time.Duration
	otelEndpoint  string
	noColor       bool

	changed  func(flag string) bool
	onListen func(netip.AddrPort)
}

// loadConfig layers defaults, the config file and explicitly set flags.
func loadConfig(o options) (*control.ConfigStore, error) {
	store := control.NewConfigStore(control.DefaultConfig())
	if o.configPath != "" {
		if err := store.LoadFile(o.configPath); err != nil {
			return nil, err
		}
	}
	changed := o.changed
	if changed == nil {
		changed = func(string) bool { return true }
	}
	err := store.Update(func(c *control.Config) {
		if changed("addr") {
			c.Net.Addr = o.addr
		}
		if changed("log-level") {
			c.Log.Level = o.logLevel
		}
		if changed("cpu") {
			c.Executor.CPU = o.cpu
		}
		if changed("timeout") {
			c.Executor.DriveTimeout = o.timeout
		}
		if changed("park-threshold") && o.parkThreshold > 0 {
			c.Executor.ParkThreshold = o.parkThreshold
		}
		if changed("otel.endpoint") {
			c.Telemetry.Endpoint = o.otelEndpoint
		}
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

func run(ctx context.Context, o options, out, errOut io.Writer) error {
	store, err := loadConfig(o)
	if err != nil {
		return err
	}
	cfg := store.Snapshot()

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.New(errOut, level)

	shutdown, err := telemetry.Setup(cfg.Telemetry.Endpoint, cfg.Telemetry.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	control.WatchReload(ctx, store, logging.Component(logger, "control"))

	hosted := kernel.NewHosted(kernel.WithLogger(logging.Component(logger, "kernel")))
	defer hosted.Close()
	release, err := hosted.LockThread(cfg.Executor.CPU)
	if err != nil {
		return err
	}
	defer release()

	ep, err := netif.ListenUDP(cfg.Net.Addr, netif.WithLogger(logging.Component(logger, "netif")))
	if err != nil {
		return err
	}
	defer ep.Close()
	hosted.SetPollingSwitch(ep)
	if o.onListen != nil {
		o.onListen(ep.LocalAddr())
	}
	// closing the endpoint completes a pending receive, which ends the loop
	go func() {
		<-ctx.Done()
		_ = ep.Close()
	}()

	stack := netstack.New(api.SystemClock{},
		netstack.WithHousekeeping(cfg.Net.Housekeeping),
		netstack.WithLogger(logging.Component(logger, "netstack")))
	stack.Attach(ep)

	metrics := control.NewMetricsRegistry()
	probes := control.NewDebugProbes()
	control.RegisterPlatformProbes(probes)

	sched, err := executor.New(hosted,
		executor.WithOracle(stack),
		executor.WithLogger(logging.Component(logger, "executor")),
		executor.WithMetrics(metrics))
	if err != nil {
		return err
	}
	sched.BindConfig(store)
	sched.RegisterProbes(probes)
	hosted.RegisterProbes(probes)
	stack.RegisterProbes(probes)
	ep.RegisterProbes(probes)
	executor.Spawn(sched, stack.Run())

	logger.Info().
		Str("addr", ep.LocalAddr().String()).
		Dur("park_threshold", sched.ParkThreshold()).
		Log("testudp: listening")

	color.NoColor = color.NoColor || o.noColor
	received := color.New(color.FgGreen)
	failed := color.New(color.FgRed, color.Bold)

	err = recvLoop(ctx, sched, ep, store, out, received, failed)

	stats := sched.Stats()
	logger.Info().
		Uint64("drives", stats.Drives).
		Uint64("passes", stats.Passes).
		Uint64("parks", stats.Parks).
		Uint64("timeouts", stats.Timeouts).
		Log("testudp: stopped")
	for name, v := range probes.DumpState() {
		logger.Debug().Str("probe", name).Str("value", fmt.Sprint(v)).Log("testudp: probe")
	}
	return err
}

func recvLoop(ctx context.Context, sched *executor.Scheduler, ep *netif.UDPEndpoint, store *control.ConfigStore, out io.Writer, received, failed *color.Color) error {
	buf := make([]byte, 1000)
	for {
		fmt.Fprintln(out, "about to recv")
		opts := []executor.DriveOption{executor.WithContext(ctx)}
		if d := store.Snapshot().Executor.DriveTimeout; d > 0 {
			opts = append(opts, executor.WithTimeout(d))
		}

		p, err := executor.Drive(sched, ep.Recv(buf), opts...)
		if errors.Is(err, executor.ErrTimeout) {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}
		if p.Err != nil {
			if ctx.Err() != nil {
				// shutdown closed the endpoint under the receive
				return nil
			}
			failed.Fprintf(out, "recv function failed: %v\n", p.Err)
			return p.Err
		}

		msg := string(buf[:p.N])
		received.Fprintf(out, "received %s", msg)
		if strings.HasPrefix(msg, "exit") {
			return nil
		}
	}
}

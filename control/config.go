// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe configuration store with TOML loading and reload propagation.

package control

import (
	"fmt"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the complete runtime configuration.
type Config struct {
	Executor  ExecutorConfig  `toml:"executor"`
	Log       LogConfig       `toml:"log"`
	Net       NetConfig       `toml:"net"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ExecutorConfig tunes the blocking driver.
type ExecutorConfig struct {
	// ParkThreshold is the network delay above which the driver parks.
	ParkThreshold time.Duration `toml:"park_threshold"`
	// DriveTimeout bounds each receive in the demo loop; zero disables it.
	DriveTimeout time.Duration `toml:"drive_timeout"`
	// CPU pins the driver thread when >= 0.
	CPU int `toml:"cpu"`
}

// LogConfig selects the log level by name (err, warning, info, debug, ...).
type LogConfig struct {
	Level string `toml:"level"`
}

// NetConfig configures the UDP endpoint and stack housekeeping.
type NetConfig struct {
	Addr         string        `toml:"addr"`
	Housekeeping time.Duration `toml:"housekeeping"`
}

// TelemetryConfig configures the OTLP exporter. Empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint string `toml:"endpoint"`
	Service  string `toml:"service"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Executor: ExecutorConfig{
			ParkThreshold: 100 * time.Millisecond,
			CPU:           -1,
		},
		Log: LogConfig{Level: "info"},
		Net: NetConfig{
			Addr:         "0.0.0.0:9975",
			Housekeeping: time.Second,
		},
		Telemetry: TelemetryConfig{Service: "hioload-netexec"},
	}
}

// Validate rejects settings the executor cannot run with.
func (c Config) Validate() error {
	if c.Executor.ParkThreshold < 0 {
		return fmt.Errorf("control: executor.park_threshold must not be negative, got %s", c.Executor.ParkThreshold)
	}
	if c.Executor.DriveTimeout < 0 {
		return fmt.Errorf("control: executor.drive_timeout must not be negative, got %s", c.Executor.DriveTimeout)
	}
	if c.Net.Housekeeping < 0 {
		return fmt.Errorf("control: net.housekeeping must not be negative, got %s", c.Net.Housekeeping)
	}
	return nil
}

// DecodeFile reads path on top of base. Keys absent from the file keep the
// value from base.
func DecodeFile(path string, base Config) (Config, error) {
	cfg := base
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return base, fmt.Errorf("control: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return base, fmt.Errorf("control: %s: unknown keys %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// ConfigStore holds the current configuration and notifies listeners on
// every change.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	path      string
	listeners []func(Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// Snapshot returns a copy of the current configuration.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// Path returns the file last loaded with LoadFile.
func (cs *ConfigStore) Path() string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.path
}

// Update applies fn to a copy of the configuration, validates it, stores it
// and dispatches reload listeners.
func (cs *ConfigStore) Update(fn func(*Config)) error {
	cs.mu.Lock()
	next := cs.config
	fn(&next)
	if err := next.Validate(); err != nil {
		cs.mu.Unlock()
		return err
	}
	cs.config = next
	listeners := append([]func(Config){}, cs.listeners...)
	cs.mu.Unlock()

	cs.dispatchReload(listeners, next)
	return nil
}

// LoadFile decodes path over the current configuration and dispatches
// reload listeners. On error the store is left unchanged.
func (cs *ConfigStore) LoadFile(path string) error {
	cfg, err := DecodeFile(path, cs.Snapshot())
	if err != nil {
		return err
	}
	cs.mu.Lock()
	cs.config = cfg
	cs.path = path
	listeners := append([]func(Config){}, cs.listeners...)
	cs.mu.Unlock()

	cs.dispatchReload(listeners, cfg)
	return nil
}

// OnReload registers a listener called after every change.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes listeners synchronously, outside the lock.
func (cs *ConfigStore) dispatchReload(listeners []func(Config), cfg Config) {
	for _, fn := range listeners {
		fn(cfg)
	}
}

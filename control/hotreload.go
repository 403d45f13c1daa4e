// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Reloads the configuration file on SIGHUP.

package control

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/logiface"
)

// WatchReload reloads the store's file every time the process receives
// SIGHUP, until ctx is done. A failed reload is logged and the previous
// configuration stays in effect.
func WatchReload(ctx context.Context, store *ConfigStore, logger *logiface.Logger[logiface.Event]) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGHUP)
	go func() {
		defer signal.Stop(sigs)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				reload(store, logger)
			}
		}
	}()
}

func reload(store *ConfigStore, logger *logiface.Logger[logiface.Event]) {
	path := store.Path()
	if path == "" {
		logger.Warning().Log("control: reload requested but no config file was loaded")
		return
	}
	if err := store.LoadFile(path); err != nil {
		logger.Err().Err(err).Str("path", path).Log("control: config reload failed")
		return
	}
	logger.Info().Str("path", path).Log("control: config reloaded")
}

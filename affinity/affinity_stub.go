//go:build !linux && !windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-netexec/api"
)

func pinPlatform(int) error {
	return fmt.Errorf("affinity: %w", api.ErrNotSupported)
}

// Current is not implemented on this platform.
func Current() ([]int, error) {
	return nil, api.ErrNotSupported
}

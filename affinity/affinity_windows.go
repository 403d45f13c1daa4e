//go:build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows implementation using SetThreadAffinityMask.

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-netexec/api"
	"golang.org/x/sys/windows"
)

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
)

func pinPlatform(cpu int) error {
	mask := uintptr(1) << cpu
	ret, _, err := procSetThreadAffinityMask.Call(uintptr(windows.CurrentThread()), mask)
	if ret == 0 {
		return fmt.Errorf("affinity: SetThreadAffinityMask cpu %d: %w", cpu, err)
	}
	return nil
}

// Current is not implemented on Windows.
func Current() ([]int, error) {
	return nil, api.ErrNotSupported
}

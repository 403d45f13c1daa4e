//go:build !linux

// File: kernel/thread_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable fallback: a single driving thread and channel-based parking.

package kernel

import (
	"runtime"

	"github.com/momentics/hioload-netexec/api"
)

// mainThread is the only identity handed out without gettid(2).
const mainThread api.ThreadID = 1

func currentTID() api.ThreadID { return mainThread }

func yieldCPU() { runtime.Gosched() }

func newParker() (parker, error) { return newChanParker(), nil }

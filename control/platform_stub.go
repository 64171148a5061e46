//go:build !linux && !windows
// +build !linux,!windows

// control/platform_stub.go
// Author: momentics <momentics@gmail.com>
//
// Platforms other than Linux/Windows have no affinity.SetAffinity
// backend (see affinity/affinity_stub.go), so platform.affinity_supported
// reports false here instead of being silently absent.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets the platform-agnostic debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.gomaxprocs", func() any {
		return runtime.GOMAXPROCS(0)
	})
	dp.RegisterProbe("platform.affinity_supported", func() any {
		return false
	})
}

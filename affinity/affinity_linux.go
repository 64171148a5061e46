//go:build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux CPU affinity via golang.org/x/sys/unix's SchedSetaffinity, pinning
// the calling OS thread (tid 0) rather than the whole process.

package affinity

import "golang.org/x/sys/unix"

func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

//go:build linux

package loop

import "golang.org/x/sys/unix"

func currentThreadID() (uint64, bool) {
	return uint64(unix.Gettid()), true
}

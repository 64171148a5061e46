// File: poller/poller.go
// Package poller implements the OS readiness backends behind the
// api.Poller contract (spec.md §4.1): a thin adapter over
// epoll/kqueue/IOCP/poll/select reporting (fd, events).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package poller

import (
	"fmt"
	"runtime"

	"github.com/hiowire/reactor/api"
)

// New constructs the Poller backend named by want. PollNone auto-selects
// the best backend for runtime.GOOS. Fails if the requested backend is
// not available on the current platform.
func New(want api.PollType) (api.Poller, error) {
	if want == api.PollNone {
		want = defaultPollType()
	}
	switch want {
	case api.PollEpoll:
		return newEpollPoller()
	case api.PollKqueue:
		return newKqueuePoller()
	case api.PollIOCP:
		return newIOCPPoller()
	case api.PollPoll:
		return newPollPoller()
	case api.PollSelect:
		return newSelectPoller()
	default:
		return nil, api.NewError(api.NotSupported, fmt.Sprintf("unknown poll type %s", want))
	}
}

// defaultPollType picks the native backend for the running OS.
func defaultPollType() api.PollType {
	switch runtime.GOOS {
	case "linux":
		return api.PollEpoll
	case "darwin", "freebsd", "netbsd", "openbsd", "dragonfly":
		return api.PollKqueue
	case "windows":
		return api.PollIOCP
	default:
		return api.PollPoll
	}
}

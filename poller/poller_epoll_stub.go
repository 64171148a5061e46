//go:build !linux

package poller

import "github.com/hiowire/reactor/api"

func newEpollPoller() (api.Poller, error) {
	return nil, api.NewError(api.NotSupported, "epoll is only available on linux")
}

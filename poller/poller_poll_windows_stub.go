//go:build windows

package poller

import "github.com/hiowire/reactor/api"

func newPollPoller() (api.Poller, error) {
	return nil, api.NewError(api.NotSupported, "POLL backend is not available on windows; use IOCP")
}

//go:build windows

package poller

import "github.com/hiowire/reactor/api"

func newSelectPoller() (api.Poller, error) {
	return nil, api.NewError(api.NotSupported, "SELECT backend is not available on windows; use IOCP")
}

//go:build !windows

package poller

import "github.com/hiowire/reactor/api"

func newIOCPPoller() (api.Poller, error) {
	return nil, api.NewError(api.NotSupported, "IOCP is only available on windows")
}

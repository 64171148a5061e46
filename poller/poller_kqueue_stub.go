//go:build !(darwin || freebsd || netbsd || openbsd || dragonfly)

package poller

import "github.com/hiowire/reactor/api"

func newKqueuePoller() (api.Poller, error) {
	return nil, api.NewError(api.NotSupported, "kqueue is only available on BSD-family platforms")
}

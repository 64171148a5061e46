//go:build !windows

// File: poller/poller_poll_unix.go
// Author: momentics <momentics@gmail.com>
//
// Portable poll(2)-based backend for PollType=POLL, used where epoll/
// kqueue are unavailable or undesired (e.g. a handful of fds where
// setup overhead outweighs epoll's benefit).

package poller

import (
	"sync"

	"github.com/hiowire/reactor/api"
	"golang.org/x/sys/unix"
)

type pollPoller struct {
	mu       sync.Mutex
	interest map[uintptr]api.EventType
}

func newPollPoller() (api.Poller, error) {
	return &pollPoller{interest: make(map[uintptr]api.EventType)}, nil
}

func (p *pollPoller) Register(fd uintptr, events api.EventType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.interest[fd]; ok {
		return api.NewError(api.InvalidState, "fd already registered")
	}
	p.interest[fd] = events
	return nil
}

func (p *pollPoller) Update(fd uintptr, events api.EventType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.interest[fd]; !ok {
		return api.NewError(api.InvalidState, "fd not registered")
	}
	p.interest[fd] = events
	return nil
}

func (p *pollPoller) Unregister(fd uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.interest, fd)
	return nil
}

func (p *pollPoller) Wait(timeoutMs int, dst []api.ReadyFD) ([]api.ReadyFD, error) {
	p.mu.Lock()
	fds := make([]unix.PollFd, 0, len(p.interest))
	order := make([]uintptr, 0, len(p.interest))
	for fd, events := range p.interest {
		var ev int16
		if events&api.EventRead != 0 {
			ev |= unix.POLLIN
		}
		if events&api.EventWrite != 0 {
			ev |= unix.POLLOUT
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: ev})
		order = append(order, fd)
	}
	p.mu.Unlock()

	if len(fds) == 0 {
		// Nothing registered; still honor the timeout as a sleep so
		// callers relying on Wait as a clock tick source behave.
		if timeoutMs > 0 {
			unix.Select(0, nil, nil, nil, &unix.Timeval{Sec: int64(timeoutMs / 1000), Usec: int64((timeoutMs % 1000) * 1000)})
		}
		return dst, nil
	}

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, api.NewError(api.PollError, "poll failed").WithContext("errno", err)
	}
	if n == 0 {
		return dst, nil
	}
	for i, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		var events api.EventType
		if pfd.Revents&unix.POLLIN != 0 {
			events |= api.EventRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			events |= api.EventWrite
		}
		if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			events |= api.EventError
		}
		dst = append(dst, api.ReadyFD{Fd: order[i], Events: events})
	}
	return dst, nil
}

func (p *pollPoller) IsLevelTriggered() bool { return true }

func (p *pollPoller) Close() error { return nil }

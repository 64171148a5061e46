//go:build linux

// File: poller/poller_epoll_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll backend, grounded on the teacher's
// reactor/epoll_reactor.go, rebuilt against api.Poller's richer
// register/update/unregister/wait contract (spec.md §4.1) instead of a
// callback-per-fd map.

package poller

import (
	"github.com/hiowire/reactor/api"
	"golang.org/x/sys/unix"
)

type epollPoller struct {
	epfd int
}

func newEpollPoller() (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, api.NewError(api.PollError, "epoll_create1 failed").WithContext("errno", err)
	}
	return &epollPoller{epfd: epfd}, nil
}

func toEpollEvents(events api.EventType) uint32 {
	var e uint32
	if events&api.EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&api.EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) api.EventType {
	var events api.EventType
	if e&unix.EPOLLIN != 0 {
		events |= api.EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= api.EventWrite
	}
	if e&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		events |= api.EventError
	}
	return events
}

func (p *epollPoller) Register(fd uintptr, events api.EventType) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		if err == unix.EEXIST {
			return api.NewError(api.InvalidState, "fd already registered")
		}
		return api.NewError(api.PollError, "epoll_ctl add failed").WithContext("errno", err)
	}
	return nil
}

func (p *epollPoller) Update(fd uintptr, events api.EventType) error {
	ev := unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, int(fd), &ev); err != nil {
		return api.NewError(api.PollError, "epoll_ctl mod failed").WithContext("errno", err)
	}
	return nil
}

func (p *epollPoller) Unregister(fd uintptr) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, int(fd), nil); err != nil {
		if err == unix.ENOENT {
			return nil
		}
		return api.NewError(api.PollError, "epoll_ctl del failed").WithContext("errno", err)
	}
	return nil
}

func (p *epollPoller) Wait(timeoutMs int, dst []api.ReadyFD) ([]api.ReadyFD, error) {
	var events [128]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, api.NewError(api.PollError, "epoll_wait failed").WithContext("errno", err)
	}
	for i := 0; i < n; i++ {
		dst = append(dst, api.ReadyFD{
			Fd:     uintptr(events[i].Fd),
			Events: fromEpollEvents(events[i].Events),
		})
	}
	return dst, nil
}

func (p *epollPoller) IsLevelTriggered() bool { return true }

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

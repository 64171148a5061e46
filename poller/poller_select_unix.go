//go:build !windows

// File: poller/poller_select_unix.go
// Author: momentics <momentics@gmail.com>
//
// select(2)-based backend for PollType=SELECT. Bounded at 1024 fds
// (FD_SETSIZE), per spec.md §4.1's "exceeds fd-set capacity (for
// select)" failure mode.

package poller

import (
	"sync"

	"github.com/hiowire/reactor/api"
	"golang.org/x/sys/unix"
)

const selectMaxFd = 1024

type selectPoller struct {
	mu       sync.Mutex
	interest map[uintptr]api.EventType
}

func newSelectPoller() (api.Poller, error) {
	return &selectPoller{interest: make(map[uintptr]api.EventType)}, nil
}

func (p *selectPoller) Register(fd uintptr, events api.EventType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fd >= selectMaxFd {
		return api.NewError(api.InvalidParam, "fd exceeds select() fd-set capacity")
	}
	if _, ok := p.interest[fd]; ok {
		return api.NewError(api.InvalidState, "fd already registered")
	}
	p.interest[fd] = events
	return nil
}

func (p *selectPoller) Update(fd uintptr, events api.EventType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.interest[fd]; !ok {
		return api.NewError(api.InvalidState, "fd not registered")
	}
	p.interest[fd] = events
	return nil
}

func (p *selectPoller) Unregister(fd uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.interest, fd)
	return nil
}

func fdSet(set *unix.FdSet, fd uintptr) {
	set.Bits[fd/64] |= 1 << (fd % 64)
}

func fdIsSet(set *unix.FdSet, fd uintptr) bool {
	return set.Bits[fd/64]&(1<<(fd%64)) != 0
}

func (p *selectPoller) Wait(timeoutMs int, dst []api.ReadyFD) ([]api.ReadyFD, error) {
	p.mu.Lock()
	var rset, wset unix.FdSet
	var maxFd uintptr
	order := make([]uintptr, 0, len(p.interest))
	for fd, events := range p.interest {
		if events&api.EventRead != 0 {
			fdSet(&rset, fd)
		}
		if events&api.EventWrite != 0 {
			fdSet(&wset, fd)
		}
		if fd > maxFd {
			maxFd = fd
		}
		order = append(order, fd)
	}
	p.mu.Unlock()

	var tv *unix.Timeval
	if timeoutMs >= 0 {
		t := unix.NsecToTimeval(int64(timeoutMs) * int64(1_000_000))
		tv = &t
	}
	n, err := unix.Select(int(maxFd)+1, &rset, &wset, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, api.NewError(api.PollError, "select failed").WithContext("errno", err)
	}
	if n == 0 {
		return dst, nil
	}
	for _, fd := range order {
		var events api.EventType
		if fdIsSet(&rset, fd) {
			events |= api.EventRead
		}
		if fdIsSet(&wset, fd) {
			events |= api.EventWrite
		}
		if events != 0 {
			dst = append(dst, api.ReadyFD{Fd: fd, Events: events})
		}
	}
	return dst, nil
}

func (p *selectPoller) IsLevelTriggered() bool { return true }

func (p *selectPoller) Close() error { return nil }

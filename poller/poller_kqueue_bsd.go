//go:build darwin || freebsd || netbsd || openbsd || dragonfly

// File: poller/poller_kqueue_bsd.go
// Author: momentics <momentics@gmail.com>
//
// kqueue backend for Darwin/BSD, expressed as two change-list entries
// (one per direction) since kqueue has no combined read+write filter.

package poller

import (
	"github.com/hiowire/reactor/api"
	"golang.org/x/sys/unix"
)

type kqueuePoller struct {
	kq int
	// interest tracks which directions are currently armed per fd, so
	// Update can diff instead of blindly re-adding both filters.
	interest map[uintptr]api.EventType
}

func newKqueuePoller() (api.Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, api.NewError(api.PollError, "kqueue create failed").WithContext("errno", err)
	}
	return &kqueuePoller{kq: kq, interest: make(map[uintptr]api.EventType)}, nil
}

func (p *kqueuePoller) changes(fd uintptr, want api.EventType) []unix.Kevent_t {
	had := p.interest[fd]
	var changes []unix.Kevent_t
	addOrDelete := func(filter int16, wantBit, hadBit bool) {
		if wantBit == hadBit {
			return
		}
		flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
		if !wantBit {
			flags = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: filter,
			Flags:  flags,
		})
	}
	addOrDelete(unix.EVFILT_READ, want&api.EventRead != 0, had&api.EventRead != 0)
	addOrDelete(unix.EVFILT_WRITE, want&api.EventWrite != 0, had&api.EventWrite != 0)
	return changes
}

func (p *kqueuePoller) apply(fd uintptr, want api.EventType) error {
	changes := p.changes(fd, want)
	if len(changes) > 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			return api.NewError(api.PollError, "kevent register failed").WithContext("errno", err)
		}
	}
	p.interest[fd] = want
	return nil
}

func (p *kqueuePoller) Register(fd uintptr, events api.EventType) error {
	if _, ok := p.interest[fd]; ok {
		return api.NewError(api.InvalidState, "fd already registered")
	}
	return p.apply(fd, events)
}

func (p *kqueuePoller) Update(fd uintptr, events api.EventType) error {
	return p.apply(fd, events)
}

func (p *kqueuePoller) Unregister(fd uintptr) error {
	if _, ok := p.interest[fd]; !ok {
		return nil
	}
	_ = p.apply(fd, 0)
	delete(p.interest, fd)
	return nil
}

func (p *kqueuePoller) Wait(timeoutMs int, dst []api.ReadyFD) ([]api.ReadyFD, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * int64(1_000_000))
		ts = &t
	}
	var events [128]unix.Kevent_t
	n, err := unix.Kevent(p.kq, nil, events[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return dst, nil
		}
		return dst, api.NewError(api.PollError, "kevent wait failed").WithContext("errno", err)
	}
	for i := 0; i < n; i++ {
		ev := events[i]
		var et api.EventType
		switch ev.Filter {
		case unix.EVFILT_READ:
			et = api.EventRead
		case unix.EVFILT_WRITE:
			et = api.EventWrite
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			et |= api.EventError
		}
		dst = append(dst, api.ReadyFD{Fd: uintptr(ev.Ident), Events: et})
	}
	return dst, nil
}

func (p *kqueuePoller) IsLevelTriggered() bool { return false }

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}

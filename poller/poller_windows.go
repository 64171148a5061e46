//go:build windows

// File: poller/poller_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows backend atop an I/O completion port, grounded on the
// teacher's reactor/iocp_reactor.go. Kept at the same readiness-mapping
// simplification the teacher used (a completion wakes the fd for read
// interest) rather than a full overlapped-I/O rewrite, since
// api.Poller's register/update/unregister/wait contract is identical
// across backends per spec.md §4.1.

package poller

import (
	"sync"
	"sync/atomic"

	"github.com/hiowire/reactor/api"
	"golang.org/x/sys/windows"
)

type iocpPoller struct {
	port       windows.Handle
	mu         sync.Mutex
	keyToFd    map[uint32]uintptr
	fdToKey    map[uintptr]uint32
	fdInterest map[uintptr]api.EventType
	keyCounter uint32
}

func newIOCPPoller() (api.Poller, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, api.NewError(api.PollError, "iocp create failed").WithContext("errno", err)
	}
	return &iocpPoller{
		port:       port,
		keyToFd:    make(map[uint32]uintptr),
		fdToKey:    make(map[uintptr]uint32),
		fdInterest: make(map[uintptr]api.EventType),
	}, nil
}

func (p *iocpPoller) Register(fd uintptr, events api.EventType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fdToKey[fd]; ok {
		return api.NewError(api.InvalidState, "fd already registered")
	}
	key := atomic.AddUint32(&p.keyCounter, 1)
	if _, err := windows.CreateIoCompletionPort(windows.Handle(fd), p.port, key, 0); err != nil {
		return api.NewError(api.PollError, "iocp associate failed").WithContext("errno", err)
	}
	p.keyToFd[key] = fd
	p.fdToKey[fd] = key
	p.fdInterest[fd] = events
	return nil
}

func (p *iocpPoller) Update(fd uintptr, events api.EventType) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.fdToKey[fd]; !ok {
		return api.NewError(api.InvalidState, "fd not registered")
	}
	p.fdInterest[fd] = events
	return nil
}

func (p *iocpPoller) Unregister(fd uintptr) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.fdToKey[fd]
	if !ok {
		return nil
	}
	delete(p.keyToFd, key)
	delete(p.fdToKey, fd)
	delete(p.fdInterest, fd)
	return nil
}

func (p *iocpPoller) Wait(timeoutMs int, dst []api.ReadyFD) ([]api.ReadyFD, error) {
	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped
	timeout := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}
	err := windows.GetQueuedCompletionStatus(p.port, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if err == windows.WAIT_TIMEOUT {
			return dst, nil
		}
		return dst, api.NewError(api.PollError, "iocp wait failed").WithContext("errno", err)
	}

	p.mu.Lock()
	fd, ok := p.keyToFd[uint32(key)]
	interest := p.fdInterest[fd]
	p.mu.Unlock()
	if !ok {
		return dst, nil
	}
	events := interest & (api.EventRead | api.EventWrite)
	if events == 0 {
		events = api.EventRead
	}
	return append(dst, api.ReadyFD{Fd: fd, Events: events}), nil
}

func (p *iocpPoller) IsLevelTriggered() bool { return true }

func (p *iocpPoller) Close() error {
	return windows.CloseHandle(p.port)
}

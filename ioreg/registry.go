// File: ioreg/registry.go
// Package ioreg implements the IO Handler Registry (spec.md §3's
// "IOHandler binding" and §4.4's registry-tolerates-mutation-during-
// dispatch rule): a map from fd to a single dispatch callback, mediating
// registration with the underlying api.Poller.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ioreg

import (
	"sync"

	"github.com/hiowire/reactor/api"
)

// Dispatch is the capability a binding exposes: (events) -> ().
type Dispatch func(events api.EventType)

type binding struct {
	fd         uintptr
	interested api.EventType
	dispatch   Dispatch
}

// Registry maps fd -> binding and mediates registration with a Poller.
// Every method takes mu, so it may be called from any thread. Dispatch
// looks up the binding under the read lock and invokes it after
// releasing the lock, so a handler may register or unregister fds
// mid-dispatch.
type Registry struct {
	poller   api.Poller
	bindings map[uintptr]*binding
	mu       sync.RWMutex // guards bindings for any incidental cross-thread reads (e.g. metrics)
}

// New creates a Registry mediating registration with poller.
func New(poller api.Poller) *Registry {
	return &Registry{poller: poller, bindings: make(map[uintptr]*binding)}
}

// Register installs dispatch for fd with the given interest and tells
// the Poller to start watching it. Fails if fd is already bound.
func (r *Registry) Register(fd uintptr, events api.EventType, dispatch Dispatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bindings[fd]; exists {
		return api.NewError(api.InvalidState, "fd already has a binding").WithContext("fd", fd)
	}
	if err := r.poller.Register(fd, events); err != nil {
		return err
	}
	r.bindings[fd] = &binding{fd: fd, interested: events, dispatch: dispatch}
	return nil
}

// Update changes the interest set for fd's existing binding.
func (r *Registry) Update(fd uintptr, events api.EventType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[fd]
	if !ok {
		return api.NewError(api.InvalidState, "fd has no binding").WithContext("fd", fd)
	}
	if err := r.poller.Update(fd, events); err != nil {
		return err
	}
	b.interested = events
	return nil
}

// Unregister removes fd's binding. Idempotent.
func (r *Registry) Unregister(fd uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bindings[fd]; !ok {
		return nil
	}
	delete(r.bindings, fd)
	return r.poller.Unregister(fd)
}

// Dispatch looks up fd's binding and invokes it with events. A copy of
// the dispatch func is taken under lock so the handler may safely
// register/unregister other fds (or itself) without deadlocking.
func (r *Registry) Dispatch(fd uintptr, events api.EventType) {
	r.mu.RLock()
	b, ok := r.bindings[fd]
	r.mu.RUnlock()
	if !ok {
		return
	}
	b.dispatch(events)
}

// Len returns the number of currently-registered bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// File: api/poller.go
// Author: momentics <momentics@gmail.com>
//
// Poller is the thin adapter contract every OS readiness backend
// (epoll/kqueue/IOCP/poll/select) satisfies. The rest of the system must
// be correct whether the concrete backend is level- or edge-triggered.

package api

// Poller multiplexes readiness over a set of registered file descriptors.
type Poller interface {
	// Register begins watching fd for the given event interest.
	// Fails if fd is already registered or the OS call fails.
	Register(fd uintptr, events EventType) error

	// Update changes the event interest for an already-registered fd.
	Update(fd uintptr, events EventType) error

	// Unregister stops watching fd. Idempotent.
	Unregister(fd uintptr) error

	// Wait blocks up to timeoutMs (negative means forever) and appends
	// ready (fd, events) pairs to dst, returning the extended slice.
	// A spurious empty wake is normal, not an error.
	Wait(timeoutMs int, dst []ReadyFD) ([]ReadyFD, error)

	// IsLevelTriggered reports whether this backend re-reports readiness
	// until drained (level) or fires once per state change (edge).
	IsLevelTriggered() bool

	// Close releases the backend's OS resources.
	Close() error
}

// ReadyFD is one (fd, events) readiness pair returned by Wait.
type ReadyFD struct {
	Fd     uintptr
	Events EventType
}

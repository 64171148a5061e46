// File: socket/state.go
// Author: momentics <momentics@gmail.com>

package socket

// State mirrors TcpSocketImpl::State from
// original_source/src/TcpSocketImpl.h.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

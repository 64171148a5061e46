// File: reactor/handles.go
// Author: momentics <momentics@gmail.com>
//
// Thin, opaque handles over the internal loop/socket/wheel packages,
// matching spec.md §1's intent that callers never need to import the
// internal substrate directly.

package reactor

import (
	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/loop"
	"github.com/hiowire/reactor/socket"
)

// Socket re-exports socket.TCPSocket as the handle external code uses.
type Socket = socket.TCPSocket

// Timer re-exports loop.Timer.
type Timer = loop.Timer

// TimerMode re-exports loop.TimerMode (OneShot/Repeating).
type TimerMode = loop.TimerMode

const (
	OneShot   = loop.OneShot
	Repeating = loop.Repeating
)

// NewSocket creates an IDLE socket owned by the given loop.
func NewSocket(el *loop.EventLoop) *Socket { return socket.New(el) }

// CreateTimer schedules callback on el per spec.md §4.2.
func CreateTimer(el *loop.EventLoop, delayMs uint64, mode TimerMode, callback func()) *Timer {
	return el.CreateTimer(delayMs, mode, callback)
}

// PollType re-exports api.PollType for callers configuring a Runtime.
type PollType = api.PollType

const (
	PollAuto   = api.PollNone
	PollPoll   = api.PollPoll
	PollSelect = api.PollSelect
	PollEpoll  = api.PollEpoll
	PollKqueue = api.PollKqueue
	PollIOCP   = api.PollIOCP
)

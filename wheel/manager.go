// File: wheel/manager.go
// Author: momentics <momentics@gmail.com>
//
// Manager is the public TimingWheel contract from spec.md §4.2:
// schedule/cancel/tick/next_expiry_ms, wrapping a Wheel with the
// handle-owns-node bookkeeping spec.md §3 describes for Timer/TimerNode.

package wheel

import "github.com/benbjohnson/clock"

// Manager owns one Wheel and hands out Timer handles.
type Manager struct {
	wheel *Wheel
}

// NewManager creates a Manager over a fresh Wheel using clk as the time
// source (nil selects the real wall clock).
func NewManager(clk clock.Clock) *Manager {
	return &Manager{wheel: New(clk)}
}

// Wheel exposes the underlying Wheel for Tick/NextExpiryMs callers
// (typically the owning EventLoop).
func (m *Manager) Wheel() *Wheel { return m.wheel }

// Timer is the user-facing handle owning a Node and a reference to the
// Manager that scheduled it. Destroying a Timer (Cancel) guarantees the
// node is out of every bucket before the handle is discarded.
type Timer struct {
	node *Node
	mgr  *Manager
}

// Schedule creates and arms a new one-shot Timer firing handler after
// delayMs. delayMs == 0 fires on the very next Tick.
func (m *Manager) Schedule(delayMs uint64, handler Handler) *Timer {
	t := &Timer{mgr: m}
	t.node = NewNode(handler)
	m.wheel.Schedule(t.node, delayMs)
	return t
}

// Reschedule re-arms an existing Timer for delayMs from the wheel's
// current tick, cancelling any pending prior scheduling first.
func (t *Timer) Reschedule(delayMs uint64) {
	t.mgr.wheel.Schedule(t.node, delayMs)
}

// ExpiryTick returns the tick this timer is currently scheduled to fire
// at.
func (t *Timer) ExpiryTick() uint64 {
	return t.node.expiryTick
}

// Cancel prevents the timer from firing. Safe to call from any thread;
// blocks if the timer's handler is currently running.
func (t *Timer) Cancel() {
	t.mgr.wheel.Cancel(t.node)
}

// Pending reports whether the timer is still armed.
func (t *Timer) Pending() bool {
	return t.node.Pending()
}

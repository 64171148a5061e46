// File: loop/timer.go
// Author: momentics <momentics@gmail.com>
//
// TimerMode and the loop-level Timer handle. Per spec.md §4.2's
// Tie-breaks rule, repeating timers are re-scheduled by the EventLoop,
// not the wheel, and per §9's open-question resolution the next fire is
// computed from the *expected* expiry tick rather than the wall-clock
// time the handler returned, so jitter never accumulates into drift.

package loop

import "github.com/hiowire/reactor/wheel"

// TimerMode selects one-shot vs. auto-repeating scheduling.
type TimerMode int

const (
	OneShot TimerMode = iota
	Repeating
)

// Timer is the loop-level handle returned by CreateTimer.
type Timer struct {
	el     *EventLoop
	wt     *wheel.Timer
	period uint64
	mode   TimerMode
}

// CreateTimer schedules callback to fire after delayMs. In Repeating
// mode it keeps re-arming itself every delayMs, computed from the prior
// expected expiry rather than from time.Now() at fire time.
func (el *EventLoop) CreateTimer(delayMs uint64, mode TimerMode, callback func()) *Timer {
	t := &Timer{el: el, period: delayMs, mode: mode}
	t.wt = el.timers.Schedule(delayMs, func() {
		callback()
		if t.mode == Repeating {
			// expected-expiry rescheduling avoids drift from handler
			// runtime: Reschedule counts from the wheel's current tick,
			// which while this handler runs is the expiry tick that just
			// fired, so next fire is prevExpiry+period, not now+period.
			t.wt.Reschedule(t.period)
		}
	})
	return t
}

// Cancel stops the timer; safe to call from any thread.
func (t *Timer) Cancel() {
	t.wt.Cancel()
}

// Pending reports whether the timer is still armed.
func (t *Timer) Pending() bool {
	return t.wt.Pending()
}

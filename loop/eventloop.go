// File: loop/eventloop.go
// Package loop implements the Event Loop from spec.md §4.4: a
// single-threaded cooperative scheduler owning a Poller, a TimingWheel,
// and a TaskQueue, driving readiness -> timers -> tasks on one thread.
//
// Grounded on the teacher's core/concurrency/eventloop.go batch-drain-
// with-backoff shape, rebuilt to drive the full poller/wheel/queue
// pipeline spec.md §4.4 describes instead of a bare channel, and on
// original_source/src/loop/EventLoop.h for the registerHandler/
// postEvent/loop/stop surface.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package loop

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hiowire/reactor/affinity"
	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/ioreg"
	"github.com/hiowire/reactor/metrics"
	"github.com/hiowire/reactor/poller"
	"github.com/hiowire/reactor/queue"
	"github.com/hiowire/reactor/wheel"
)

// Config tunes a single EventLoop.
type Config struct {
	PollType    api.PollType
	MaxWaitMs   int // upper bound on a single Poller.Wait call
	PinOSThread bool
	CPUID       int // logical CPU to pin to when PinOSThread is set; -1 leaves placement to the scheduler
	Logger      *zap.Logger
	Clock       clock.Clock       // nil selects the real wall clock
	Metrics     *metrics.Registry // nil disables metrics collection
}

// DefaultConfig returns sane defaults: auto-selected poll backend, a
// 1s max wait so stop()/posted work is never starved for long, no
// thread pinning, a no-op logger.
func DefaultConfig() Config {
	return Config{
		PollType:  api.PollNone,
		MaxWaitMs: 1000,
		CPUID:     -1,
		Logger:    zap.NewNop(),
	}
}

// EventLoop owns one Poller, one wheel.Manager, one queue.TaskQueue, and
// one ioreg.Registry, and drives them all from a single goroutine
// locked to one OS thread (and optionally pinned to one CPU), per
// spec.md §3/§4.4.
type EventLoop struct {
	cfg      Config
	pl       api.Poller
	registry *ioreg.Registry
	timers   *wheel.Manager
	tasks    *queue.TaskQueue
	clk      clock.Clock
	log      *zap.Logger

	wake *wakePipe

	stopFlag  atomic.Bool
	inDisp    atomic.Bool
	ownerTid  uint64
	ownerSet  atomic.Bool
	hasTidAPI bool

	doneCh chan struct{}
}

// New constructs an EventLoop and opens its Poller backend. Mirrors the
// original's two-phase EventLoop()+init() split: construction never
// fails on anything but the Poller, which is the one thing spec.md §4.1
// allows to fail fatally at setup.
func New(cfg Config) (*EventLoop, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxWaitMs <= 0 {
		cfg.MaxWaitMs = 1000
	}
	pl, err := poller.New(cfg.PollType)
	if err != nil {
		return nil, err
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	wp, err := newWakePipe()
	if err != nil {
		_ = pl.Close()
		return nil, api.NewError(api.Failed, "wake pipe setup failed").WithContext("err", err)
	}

	el := &EventLoop{
		cfg:      cfg,
		pl:       pl,
		registry: ioreg.New(pl),
		timers:   wheel.NewManager(clk),
		tasks:    queue.New(),
		clk:      clk,
		log:      cfg.Logger,
		wake:     wp,
		doneCh:   make(chan struct{}),
	}
	if err := el.registry.Register(wp.readFd(), api.EventRead, func(api.EventType) { wp.drain() }); err != nil {
		_ = pl.Close()
		return nil, err
	}
	return el, nil
}

// RegisterFd installs dispatch for fd, per spec.md §6's loop-level
// surface.
func (el *EventLoop) RegisterFd(fd uintptr, events api.EventType, dispatch ioreg.Dispatch) error {
	return el.registry.Register(fd, events, dispatch)
}

// UpdateFd changes fd's interest set.
func (el *EventLoop) UpdateFd(fd uintptr, events api.EventType) error {
	return el.registry.Update(fd, events)
}

// UnregisterFd removes fd's binding.
func (el *EventLoop) UnregisterFd(fd uintptr) error {
	return el.registry.Unregister(fd)
}

// Timers exposes the wheel.Manager so socket/timer handles can schedule
// against this loop's clock.
func (el *EventLoop) Timers() *wheel.Manager { return el.timers }

// PendingTasks reports the number of thunks currently queued for this
// loop's next drain, for debug/introspection probes.
func (el *EventLoop) PendingTasks() int { return el.tasks.Len() }

// CreateToken creates a fresh cancellation token scoped to this loop.
func (el *EventLoop) CreateToken() *queue.Token { return queue.NewToken() }

// Async enqueues thunk for execution on the loop thread. Per spec.md
// §4.3, even a same-thread caller is deferred to the next drain so
// ordering with already-queued tasks is preserved.
func (el *EventLoop) Async(thunk func(), token *queue.Token) {
	el.tasks.Push(thunk, token)
	el.wake.signal()
}

// Post always defers thunk, guaranteeing the caller returns before it
// runs, even when called from the loop thread.
func (el *EventLoop) Post(thunk func(), token *queue.Token) {
	el.tasks.Push(thunk, token)
	el.wake.signal()
}

// Sync runs thunk inline if called from the loop thread outside of an
// active dispatch frame; otherwise posts it and blocks until it has run.
// Fails fast if the loop is stopped, or if called reentrantly from
// within the loop's own dispatch (spec.md §5 Re-entrancy).
func (el *EventLoop) Sync(thunk func()) error {
	if el.stopFlag.Load() {
		return api.NewError(api.Closed, "loop is stopped")
	}
	if el.InSameThread() {
		if el.inDisp.Load() {
			return api.NewError(api.InvalidState, "reentrant sync() from within loop dispatch")
		}
		thunk()
		return nil
	}
	gate := el.tasks.PushSync(thunk)
	el.wake.signal()
	select {
	case <-gate:
		return nil
	case <-el.doneCh:
		return api.NewError(api.Closed, "loop stopped before sync task ran")
	}
}

// CancelToken marks token cancelled; every not-yet-started task bearing
// it is skipped when drained.
func (el *EventLoop) CancelToken(token *queue.Token) {
	token.Cancel()
}

// InSameThread reports whether the caller is running on this loop's
// owning thread. Used by Sync to choose inline execution and by Stop
// to decide whether to wait for Loop to return.
func (el *EventLoop) InSameThread() bool {
	if !el.ownerSet.Load() {
		return false
	}
	if el.hasTidAPI {
		tid, _ := currentThreadID()
		return tid == el.ownerTid
	}
	// Platforms without a cheap thread id: the only way user code runs
	// "as if on the loop thread" is from inside a dispatch frame the
	// loop itself invoked.
	return el.inDisp.Load()
}

// PollType reports the PollType this loop was configured with
// (api.PollNone when the backend was auto-selected).
func (el *EventLoop) PollType() api.PollType { return el.cfg.PollType }

// Loop runs the main routine until Stop is called: drain tasks, tick
// timers, wait on the poller, dispatch ready fds. Queued tasks not yet
// run when stop is observed are dropped without executing, per spec.md
// §4.4 Shutdown.
func (el *EventLoop) Loop() {
	// The owning-thread id recorded below identifies this loop only while
	// the goroutine stays on that OS thread, so it is locked for the run.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if el.cfg.PinOSThread && el.cfg.CPUID >= 0 {
		if err := affinity.SetAffinity(el.cfg.CPUID); err != nil {
			el.log.Warn("cpu affinity pin failed", zap.Int("cpu", el.cfg.CPUID), zap.Error(err))
		}
	}
	if tid, ok := currentThreadID(); ok {
		el.ownerTid = tid
		el.hasTidAPI = true
	}
	el.ownerSet.Store(true)

	var readyBuf []api.ReadyFD
	for !el.stopFlag.Load() {
		if el.cfg.Metrics != nil {
			el.cfg.Metrics.LoopIterations.Inc()
		}
		el.runTasks()

		now := el.nowMs()
		el.inDisp.Store(true)
		fired := el.timers.Wheel().Tick(now)
		el.inDisp.Store(false)
		if el.cfg.Metrics != nil && fired > 0 {
			el.cfg.Metrics.TimersFired.Add(float64(fired))
		}

		timeout := el.cfg.MaxWaitMs
		if next, ok := el.timers.Wheel().NextExpiryMs(); ok {
			if d := int(next - now); d < timeout {
				if d < 0 {
					d = 0
				}
				timeout = d
			}
		}
		if el.tasks.Len() > 0 {
			timeout = 0
		}

		readyBuf = readyBuf[:0]
		ready, err := el.pl.Wait(timeout, readyBuf)
		if err != nil {
			el.log.Error("poller wait failed", zap.Error(err))
			continue
		}
		el.inDisp.Store(true)
		for _, r := range ready {
			el.registry.Dispatch(r.Fd, r.Events)
		}
		el.inDisp.Store(false)
	}

	el.drainOnStop()
	close(el.doneCh)
}

func (el *EventLoop) runTasks() {
	tasks := el.tasks.Drain()
	if len(tasks) == 0 {
		return
	}
	el.inDisp.Store(true)
	for _, t := range tasks {
		queue.Run(t)
	}
	el.inDisp.Store(false)
	if el.cfg.Metrics != nil {
		el.cfg.Metrics.TasksRun.Add(float64(len(tasks)))
	}
}

func (el *EventLoop) nowMs() uint64 {
	return uint64(el.clk.Now().UnixMilli())
}

// Stop signals the loop to exit and wakes the poller. If called from a
// different goroutine than Loop() is running on, it blocks until Loop
// returns.
func (el *EventLoop) Stop() {
	if !el.stopFlag.CompareAndSwap(false, true) {
		return
	}
	el.wake.signal()
	if !el.InSameThread() {
		<-el.doneCh
	}
}

// drainOnStop drops queued tasks without running them and releases the
// wake pipe and the poller, aggregating any teardown errors. Timers still
// pending on the wheel are not cancelled: they stay linked and Pending,
// and no further Tick runs once Loop returns.
func (el *EventLoop) drainOnStop() {
	var errs error
	_ = el.tasks.Drain() // dropped, not executed
	if err := el.registry.Unregister(el.wake.readFd()); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := el.pl.Close(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := el.wake.close(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		el.log.Warn("event loop teardown encountered errors", zap.Error(errs))
	}
}

// Done returns a channel closed once Loop() has returned.
func (el *EventLoop) Done() <-chan struct{} { return el.doneCh }

// LoopOnce is a test seam: run exactly one iteration without requiring a
// background goroutine, matching the spec.md §6 loopOnce surface.
func (el *EventLoop) LoopOnce(timeoutMs int) {
	if !el.ownerSet.Load() {
		if tid, ok := currentThreadID(); ok {
			el.ownerTid = tid
			el.hasTidAPI = true
		}
		el.ownerSet.Store(true)
	}
	el.runTasks()
	now := el.nowMs()
	el.timers.Wheel().Tick(now)
	var readyBuf []api.ReadyFD
	ready, err := el.pl.Wait(timeoutMs, readyBuf)
	if err != nil {
		el.log.Error("poller wait failed", zap.Error(err))
		return
	}
	el.inDisp.Store(true)
	for _, r := range ready {
		el.registry.Dispatch(r.Fd, r.Events)
	}
	el.inDisp.Store(false)
}

// waitForShortDelay is a small helper used by tests/examples that need
// to let a couple of loop iterations elapse.
func waitForShortDelay() { time.Sleep(time.Millisecond) }

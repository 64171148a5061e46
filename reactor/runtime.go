// File: reactor/runtime.go
// Author: momentics <momentics@gmail.com>
//
// Runtime supervises a fixed pool of loop.EventLoops via
// golang.org/x/sync/errgroup, the same multi-goroutine supervision
// style the dep2p example repo's go.mod pulls in for its own worker
// groups. An optional github.com/raulk/go-watchdog heap monitor
// triggers an orderly Shutdown under memory pressure, per spec.md §4.4
// Shutdown's "the runtime may stop on external signal" allowance.

package reactor

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/raulk/go-watchdog"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hiowire/reactor/api"
	"github.com/hiowire/reactor/control"
	"github.com/hiowire/reactor/loop"
)

// Runtime owns NumLoops independent event loops and round-robins new
// connections/timers across them.
type Runtime struct {
	cfg   Config
	loops []*loop.EventLoop
	next  atomic.Uint64
	log   *zap.Logger

	Debug  *control.DebugProbes
	Config *control.ConfigStore

	g            *errgroup.Group
	watchdogDone chan struct{}
}

// New constructs every configured loop's Poller up front; Start
// launches their goroutines.
func New(cfg Config) (*Runtime, error) {
	if cfg.NumLoops <= 0 {
		cfg.NumLoops = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	loops := make([]*loop.EventLoop, cfg.NumLoops)
	for i := range loops {
		cpuID := -1
		if cfg.PinOSThread {
			cpuID = i % runtime.NumCPU()
		}
		el, err := loop.New(loop.Config{
			PollType:    cfg.PollType,
			MaxWaitMs:   cfg.MaxWaitMs,
			PinOSThread: cfg.PinOSThread,
			CPUID:       cpuID,
			Logger:      cfg.Logger,
		})
		if err != nil {
			for _, prior := range loops[:i] {
				prior.Stop()
			}
			return nil, err
		}
		loops[i] = el
	}
	r := &Runtime{
		cfg:    cfg,
		loops:  loops,
		log:    cfg.Logger,
		Debug:  control.NewDebugProbes(),
		Config: control.NewConfigStore(),
	}
	r.Debug.RegisterProbe("runtime.num_loops", func() any { return len(r.loops) })
	r.Debug.RegisterProbe("runtime.poll_type", func() any { return r.cfg.PollType.String() })
	r.Debug.RegisterProbe("runtime.pending_timers", func() any {
		total := 0
		for _, el := range r.loops {
			total += el.Timers().Wheel().Count()
		}
		return total
	})
	r.Debug.RegisterProbe("runtime.pending_tasks", func() any {
		total := 0
		for _, el := range r.loops {
			total += el.PendingTasks()
		}
		return total
	})
	control.RegisterPlatformProbes(r.Debug)
	r.Config.SetConfig(map[string]any{
		"num_loops":   cfg.NumLoops,
		"max_wait_ms": cfg.MaxWaitMs,
	})
	r.Config.OnReload("runtime.log_reconfigure", func() {
		r.log.Info("runtime config reloaded",
			zap.Int("num_loops", r.Config.GetInt("num_loops", len(r.loops))),
			zap.Int("max_wait_ms", r.Config.GetInt("max_wait_ms", cfg.MaxWaitMs)))
	})
	return r, nil
}

// Reconfigure merges updates into the runtime's live ConfigStore and
// fires its reload listeners (see New's "runtime.log_reconfigure"
// listener). Keys outside num_loops/max_wait_ms are stored but have no
// live effect: the pool of loops and each loop's poll-wait bound are
// fixed at New time, per spec.md §4.4's Non-goals.
func (r *Runtime) Reconfigure(updates map[string]any) {
	r.Config.SetConfig(updates)
}

// Start launches every loop's goroutine and, if configured, the memory
// watchdog.
func (r *Runtime) Start() {
	r.g = &errgroup.Group{}
	for _, el := range r.loops {
		el := el
		r.g.Go(func() error {
			el.Loop()
			return nil
		})
	}
	if r.cfg.EnableWatchdog && r.cfg.MemLimitBytes > 0 {
		r.startWatchdog()
	}
}

func (r *Runtime) startWatchdog() {
	interval := r.cfg.WatchInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	err := watchdog.HeapDriven(r.cfg.MemLimitBytes, interval, watchdog.NewAdaptivePolicy(0.5))
	if err != nil {
		r.log.Warn("watchdog setup failed, continuing without memory-pressure shutdown", zap.Error(err))
		return
	}
	notify := make(chan struct{}, 1)
	watchdog.RegisterNotifiee(notify)
	r.watchdogDone = make(chan struct{})
	go func() {
		select {
		case <-notify:
			r.log.Warn("memory watchdog triggered, shutting down runtime")
			_ = r.Shutdown()
		case <-r.watchdogDone:
		}
	}()
}

// NextLoop round-robins across the pool; use it to pick which loop a
// newly-accepted socket.TCPSocket should attach to.
func (r *Runtime) NextLoop() *loop.EventLoop {
	idx := r.next.Add(1) - 1
	return r.loops[idx%uint64(len(r.loops))]
}

// Loops exposes the full pool, e.g. for per-loop metrics collection.
func (r *Runtime) Loops() []*loop.EventLoop { return r.loops }

// PollType reports the PollType every loop in the pool was configured
// with (api.PollNone when each loop auto-selected its backend).
func (r *Runtime) PollType() api.PollType { return r.cfg.PollType }

// Shutdown stops every loop and waits for their goroutines to return.
// On a Runtime that was never started it returns nil at once, leaving
// the unstarted loops' pollers open.
func (r *Runtime) Shutdown() error {
	if r.watchdogDone != nil {
		select {
		case <-r.watchdogDone:
		default:
			close(r.watchdogDone)
		}
	}
	if r.g == nil {
		return nil
	}
	for _, el := range r.loops {
		el.Stop()
	}
	return r.g.Wait()
}

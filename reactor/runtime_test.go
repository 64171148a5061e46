//go:build !windows

package reactor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/hiowire/reactor/api"
)

func TestRuntime_StartShutdown(t *testing.T) {
	rt, err := New(Config{NumLoops: 3, PollType: api.PollPoll, MaxWaitMs: 50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rt.Start()

	if len(rt.Loops()) != 3 {
		t.Fatalf("expected 3 loops, got %d", len(rt.Loops()))
	}

	var counter int64
	for i := 0; i < 6; i++ {
		el := rt.NextLoop()
		if err := el.Sync(func() { atomic.AddInt64(&counter, 1) }); err != nil {
			t.Fatalf("sync: %v", err)
		}
	}
	if atomic.LoadInt64(&counter) != 6 {
		t.Fatalf("expected 6, got %d", counter)
	}

	if err := rt.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestRuntime_DebugProbesAndConfig(t *testing.T) {
	rt, err := New(Config{NumLoops: 2, PollType: api.PollPoll, MaxWaitMs: 50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer rt.Shutdown()

	state := rt.Debug.DumpState()
	if state["runtime.num_loops"] != 2 {
		t.Fatalf("expected runtime.num_loops=2, got %v", state["runtime.num_loops"])
	}

	snap := rt.Config.GetSnapshot()
	if snap["num_loops"] != 2 {
		t.Fatalf("expected config num_loops=2, got %v", snap["num_loops"])
	}
	if rt.Config.GetInt("num_loops", -1) != 2 {
		t.Fatalf("expected typed GetInt num_loops=2, got %v", rt.Config.GetInt("num_loops", -1))
	}
	if state["runtime.pending_timers"] != 0 {
		t.Fatalf("expected runtime.pending_timers=0, got %v", state["runtime.pending_timers"])
	}
	if state["runtime.pending_tasks"] != 0 {
		t.Fatalf("expected runtime.pending_tasks=0, got %v", state["runtime.pending_tasks"])
	}

	rt.Reconfigure(map[string]any{"num_loops": 5})
	time.Sleep(10 * time.Millisecond) // reload listeners fire asynchronously
	if rt.Config.GetInt("num_loops", -1) != 5 {
		t.Fatalf("expected Reconfigure to update num_loops, got %v", rt.Config.GetInt("num_loops", -1))
	}
}

func TestRuntime_NextLoopRoundRobins(t *testing.T) {
	rt, err := New(Config{NumLoops: 2, PollType: api.PollPoll, MaxWaitMs: 50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rt.Start()
	defer rt.Shutdown()

	a := rt.NextLoop()
	b := rt.NextLoop()
	c := rt.NextLoop()
	if a == b {
		t.Fatal("expected NextLoop to alternate")
	}
	if a != c {
		t.Fatal("expected NextLoop to cycle back after NumLoops calls")
	}
	time.Sleep(10 * time.Millisecond)
}

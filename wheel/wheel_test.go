package wheel

import (
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
)

func TestWheel_FiresAfterDelay(t *testing.T) {
	w := New(clock.NewMock())
	fired := make(chan uint64, 1)
	node := NewNode(func() { fired <- w.lastTick })
	w.Schedule(node, 10)

	if n := w.Tick(9); n != 0 {
		t.Fatalf("fired early: %d", n)
	}
	if n := w.Tick(10); n != 1 {
		t.Fatalf("expected 1 fire at tick 10, got %d", n)
	}
	select {
	case tick := <-fired:
		if tick < 10 {
			t.Fatalf("fired before delay: tick=%d", tick)
		}
	default:
		t.Fatal("handler did not run")
	}
}

func TestWheel_CancelledNeverFires(t *testing.T) {
	w := New(clock.NewMock())
	fired := false
	node := NewNode(func() { fired = true })
	w.Schedule(node, 5)
	w.Cancel(node)
	w.Tick(1000)
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestWheel_CascadeAcrossLevels(t *testing.T) {
	w := New(clock.NewMock())
	// Delay large enough to land in level 1+ and require cascading.
	const delay = uint64(bucketsPerTier) + 50
	fired := 0
	node := NewNode(func() { fired++ })
	w.Schedule(node, delay)

	w.Tick(delay - 1)
	if fired != 0 {
		t.Fatalf("fired too early: %d", fired)
	}
	w.Tick(delay)
	if fired != 1 {
		t.Fatalf("expected exactly 1 fire, got %d", fired)
	}
}

func TestWheel_InsertionOrderWithinBucket(t *testing.T) {
	w := New(clock.NewMock())
	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		node := NewNode(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		w.Schedule(node, 3)
	}
	w.Tick(3)
	for i, v := range order {
		if v != i {
			t.Fatalf("fire order broken: %v", order)
		}
	}
}

func TestWheel_RescheduleCancelsPrevious(t *testing.T) {
	w := New(clock.NewMock())
	fired := 0
	node := NewNode(func() { fired++ })
	w.Schedule(node, 5)
	w.Schedule(node, 20) // re-schedule before first fire
	w.Tick(5)
	if fired != 0 {
		t.Fatalf("stale schedule fired: %d", fired)
	}
	w.Tick(20)
	if fired != 1 {
		t.Fatalf("expected 1 fire, got %d", fired)
	}
}

func TestWheel_FanOutManyTimers(t *testing.T) {
	w := New(clock.NewMock())
	const n = 2000
	var mu sync.Mutex
	count := 0
	for i := 0; i < n; i++ {
		delay := uint64(1 + i%5000)
		node := NewNode(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
		w.Schedule(node, delay)
	}
	w.Tick(6000)
	if count != n {
		t.Fatalf("expected %d fires, got %d", n, count)
	}
}

func TestWheel_HandlerCancellingItselfDoesNotDeadlock(t *testing.T) {
	w := New(clock.NewMock())
	var node *Node
	fired := 0
	node = NewNode(func() {
		fired++
		w.Cancel(node) // a repeating timer stopping itself after N iterations
	})
	w.Schedule(node, 5)
	w.Tick(5)
	if fired != 1 {
		t.Fatalf("expected exactly 1 fire, got %d", fired)
	}
}

func TestWheel_HandlerCancellingSiblingDoesNotDeadlock(t *testing.T) {
	w := New(clock.NewMock())
	sibling := NewNode(func() {})
	w.Schedule(sibling, 100)

	winnerFired := false
	winner := NewNode(func() {
		winnerFired = true
		w.Cancel(sibling) // winner of a race cancels the loser from inside its own handler
	})
	w.Schedule(winner, 5)

	w.Tick(5)
	if !winnerFired {
		t.Fatal("winner handler never ran")
	}
	if w.Count() != 0 {
		t.Fatalf("expected sibling to be cancelled, wheel still has %d pending", w.Count())
	}
}

func TestManager_ScheduleAndCancel(t *testing.T) {
	mgr := NewManager(clock.NewMock())
	fired := false
	timer := mgr.Schedule(10, func() { fired = true })
	if !timer.Pending() {
		t.Fatal("timer should be pending right after schedule")
	}
	timer.Cancel()
	mgr.Wheel().Tick(100)
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

//go:build !windows

package loop

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hiowire/reactor/api"
)

func newTestLoop(t *testing.T) *EventLoop {
	t.Helper()
	el, err := New(Config{PollType: api.PollNone, MaxWaitMs: 50})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return el
}

func TestEventLoop_CrossThreadPostsCounted(t *testing.T) {
	el := newTestLoop(t)
	go el.Loop()
	defer el.Stop()

	var counter int64
	var wg sync.WaitGroup
	const producers = 8
	const perProducer = 10000
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				el.Post(func() { atomic.AddInt64(&counter, 1) }, nil)
			}
		}()
	}
	wg.Wait()

	if err := el.Sync(func() {}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if got := atomic.LoadInt64(&counter); got != producers*perProducer {
		t.Fatalf("expected %d, got %d", producers*perProducer, got)
	}
}

func TestEventLoop_TokenCancelSkipsTask(t *testing.T) {
	el := newTestLoop(t)
	go el.Loop()
	defer el.Stop()

	tok := el.CreateToken()
	ran := make(chan struct{}, 1)
	el.Async(func() { ran <- struct{}{} }, tok)
	tok.Cancel()

	if err := el.Sync(func() {}); err != nil {
		t.Fatalf("sync: %v", err)
	}
	select {
	case <-ran:
		t.Fatal("cancelled task ran")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventLoop_TimerFires(t *testing.T) {
	el := newTestLoop(t)
	go el.Loop()
	defer el.Stop()

	fired := make(chan struct{}, 1)
	el.CreateTimer(20, OneShot, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestEventLoop_SyncFromTimerHandlerIsReentrant(t *testing.T) {
	el := newTestLoop(t)
	go el.Loop()
	defer el.Stop()

	result := make(chan error, 1)
	el.CreateTimer(20, OneShot, func() {
		result <- el.Sync(func() {})
	})

	select {
	case err := <-result:
		if err == nil {
			t.Fatal("expected Sync called from within a timer handler to be diagnosed as reentrant")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}

func TestEventLoop_StopIsIdempotent(t *testing.T) {
	el := newTestLoop(t)
	go el.Loop()
	el.Stop()
	el.Stop() // must not hang or panic
}

func TestEventLoop_SyncFailsAfterStop(t *testing.T) {
	el := newTestLoop(t)
	go el.Loop()
	el.Stop()
	if err := el.Sync(func() {}); err == nil {
		t.Fatal("expected error from sync after stop")
	}
}

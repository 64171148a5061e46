// File: wheel/wheel.go
// Package wheel implements the hierarchical timing wheel described in
// spec.md §4.2, grounded directly on the cascade algorithm in
// original_source/src/util/kmtimer.h (KM_Timer_Manager::add_timer /
// cascade_timer).
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wheel

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

const (
	levels         = 4
	bucketBits     = 8
	bucketsPerTier = 1 << bucketBits // 256
	bucketMask     = bucketsPerTier - 1
)

// Wheel is a 4-level, 256-bucket-per-level hierarchical timing wheel.
// All mutating calls serialize through mu so Timer handles may be
// scheduled from any thread, per spec.md §4.2.
type Wheel struct {
	mu    sync.Mutex
	tiers [levels][bucketsPerTier]Node // circular-list heads

	lastTick uint64
	count    int

	// fireMu is held for the duration of exactly one handler
	// invocation at a time. Because Tick is only ever driven by the
	// owning loop's single thread, at most one node fires at once, so
	// Cancel blocking on fireMu gives the "cancel of the running node
	// blocks until its handler returns" rule from spec.md §4.2. A
	// handler cancelling a timer (itself or a sibling) runs on the same
	// goroutine that already holds fireMu, so Cancel must skip the
	// block in that case or it deadlocks the loop; firingGoroutine
	// records which goroutine currently holds fireMu so Cancel can tell.
	fireMu          sync.Mutex
	firingGoroutine atomic.Uint64
	runningNode     *Node // introspection only; not used for blocking

	clock clock.Clock
}

// New creates an empty wheel whose lastTick starts at clk's current
// millisecond. clk may be nil to use the real wall clock; the wheel
// tests pass a clock.NewMock() (which starts at the Unix epoch, so
// lastTick starts at 0) and drive Tick directly.
func New(clk clock.Clock) *Wheel {
	if clk == nil {
		clk = clock.New()
	}
	w := &Wheel{clock: clk}
	w.lastTick = uint64(clk.Now().UnixMilli())
	for l := 0; l < levels; l++ {
		for b := 0; b < bucketsPerTier; b++ {
			listInitHead(&w.tiers[l][b])
		}
	}
	return w
}

// NowMs returns the wheel's clock in milliseconds, for callers that want
// to schedule tick() calls against it.
func (w *Wheel) NowMs() uint64 {
	return uint64(w.clock.Now().UnixMilli())
}

// Count returns the number of live (scheduled, not-yet-fired) nodes.
func (w *Wheel) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Schedule places node so it expires at lastTick+delayMs (lastTick+1
// when delayMs is 0, the next tick). Scheduling a node that is already
// pending first cancels the previous scheduling, so a node is never
// linked twice.
func (w *Wheel) Schedule(node *Node, delayMs uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked(node)
	if delayMs == 0 {
		delayMs = 1
	}

	node.cancelled = false
	node.expiryTick = w.lastTick + delayMs
	w.linkLocked(node, w.lastTick)
	w.count++
}

// Cancel marks node cancelled and unlinks it if it is not currently
// firing. If some *other* goroutine's handler is in flight, Cancel
// blocks until that handler returns, guaranteeing the caller may then
// free the timer safely (spec.md §4.2 Firing / §5 Cancellation). A
// handler cancelling a timer from inside its own goroutine — itself on
// a repeat-then-stop timer, or a sibling "race" timer — does not block,
// since sync.Mutex is non-reentrant and blocking here would deadlock
// the single loop goroutine against itself.
func (w *Wheel) Cancel(node *Node) {
	if w.firingGoroutine.Load() != getGoroutineID() {
		// Block until any in-flight fire on another goroutine (there
		// can be at most one, since Tick runs on a single thread) has
		// returned before touching node.
		w.fireMu.Lock()
		w.fireMu.Unlock() //nolint:staticcheck // deliberate barrier acquire
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelLocked(node)
}

func (w *Wheel) cancelLocked(node *Node) {
	wasPending := node.pending
	node.cancelled = true
	listRemove(node)
	if wasPending {
		w.count--
	}
}

// linkLocked inserts node into the bucket its expiry maps to at the
// given "now" reference tick, following the cascade placement rule:
// the smallest level L where (expiry ^ now) >> (8*L+8) == 0.
func (w *Wheel) linkLocked(node *Node, now uint64) {
	diff := node.expiryTick ^ now
	level := levels - 1
	for l := 0; l < levels-1; l++ {
		if diff>>uint(bucketBits*l+bucketBits) == 0 {
			level = l
			break
		}
	}
	bucket := int((node.expiryTick >> uint(bucketBits*level)) & bucketMask)
	listAdd(&w.tiers[level][bucket], node)
}

// Tick advances the wheel to nowMs, firing every node whose expiry has
// passed and cascading lower-resolution buckets as the level-0 index
// wraps. Returns the number of nodes fired. Handlers run outside the
// wheel lock, so they may themselves call Schedule/Cancel.
func (w *Wheel) Tick(nowMs uint64) int {
	fired := 0
	for {
		w.mu.Lock()
		if w.lastTick >= nowMs {
			w.mu.Unlock()
			break
		}
		w.lastTick++
		idx := int(w.lastTick & bucketMask)

		var toFire []*Node
		head := &w.tiers[0][idx]
		for n := head.next; n != head; {
			next := n.next
			if n.cancelled {
				listRemove(n)
				w.count--
			} else if n.expiryTick <= w.lastTick {
				listRemove(n)
				toFire = append(toFire, n)
			}
			n = next
		}

		if idx == 0 {
			w.cascade(1)
		}
		w.mu.Unlock()

		for _, n := range toFire {
			w.fire(n)
			fired++
		}
	}
	return fired
}

// cascade re-schedules every node in the next bucket of tier `level`
// using the normal placement rule, which deposits each node into a
// lower tier (eventually tier 0). Recurses upward when that tier's
// index also wraps. Must be called with w.mu held.
func (w *Wheel) cascade(level int) {
	if level >= levels {
		return
	}
	idx := int((w.lastTick >> uint(bucketBits*level)) & bucketMask)
	head := &w.tiers[level][idx]
	var nodes []*Node
	for n := head.next; n != head; n = n.next {
		nodes = append(nodes, n)
	}
	for _, n := range nodes {
		listRemove(n)
		w.linkLocked(n, w.lastTick)
	}
	if idx == 0 {
		w.cascade(level + 1)
	}
}

// fire invokes the handler of an already-unlinked node under fireMu, so
// a concurrent Cancel of the same node blocks until the handler returns.
func (w *Wheel) fire(n *Node) {
	w.fireMu.Lock()
	w.runningNode = n
	w.firingGoroutine.Store(getGoroutineID())
	func() {
		defer func() { _ = recover() }()
		n.handler()
	}()
	w.firingGoroutine.Store(0)
	w.runningNode = nil
	w.fireMu.Unlock()

	w.mu.Lock()
	w.count--
	w.mu.Unlock()
}

// getGoroutineID returns the current goroutine's ID, parsed out of the
// "goroutine N [...]" header runtime.Stack always writes first. Grounded
// on the same technique the joeycumines-go-utilpkg event loop uses to
// detect its own dispatch goroutine for reentrancy checks.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}

// NextExpiryMs returns the smallest pending expiry tick across tier 0
// and true, or (0, false) if tier 0 holds no live node. Callers
// use this to bound how long they may safely block in the poller.
func (w *Wheel) NextExpiryMs() (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var best uint64
	found := false
	for b := 0; b < bucketsPerTier; b++ {
		head := &w.tiers[0][b]
		for n := head.next; n != head; n = n.next {
			if n.cancelled {
				continue
			}
			if !found || n.expiryTick < best {
				best = n.expiryTick
				found = true
			}
		}
	}
	return best, found
}

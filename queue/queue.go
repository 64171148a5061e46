// File: queue/queue.go
// Package queue implements the thread-safe MPSC task queue and token
// bookkeeping from spec.md §4.3, adapted from the teacher's
// core/concurrency/lock_free_queue.go cell-sequence discipline but
// built atop github.com/eapache/queue — declared in the teacher's own
// go.mod but never imported by its code, wired here for the first time
// as the queue's backing ring buffer.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package queue

import (
	"sync"

	eapacheq "github.com/eapache/queue"
)

// Task is one deferred unit of work. gate, when non-nil, is signalled
// after thunk runs (or is skipped), implementing sync()'s
// completion-gate semantics.
type Task struct {
	thunk func()
	token *Token
	gate  chan struct{}
}

// TaskQueue is a thread-safe MPSC FIFO of Tasks. Producers from any
// thread may Push; only the owning loop thread calls Drain.
type TaskQueue struct {
	mu sync.Mutex
	q  *eapacheq.Queue
}

// New creates an empty TaskQueue.
func New() *TaskQueue {
	return &TaskQueue{q: eapacheq.New()}
}

// Push appends a task. FIFO across all pushes from the same producer;
// no ordering guarantee between producers (spec.md §4.3/§5).
func (tq *TaskQueue) Push(thunk func(), token *Token) {
	tq.push(&Task{thunk: thunk, token: token})
}

// PushSync appends a task carrying a completion gate, for sync()'s
// block-until-done behavior.
func (tq *TaskQueue) PushSync(thunk func()) chan struct{} {
	gate := make(chan struct{})
	tq.push(&Task{thunk: thunk, gate: gate})
	return gate
}

func (tq *TaskQueue) push(t *Task) {
	tq.mu.Lock()
	tq.q.Add(t)
	tq.mu.Unlock()
}

// Len reports the approximate number of queued tasks.
func (tq *TaskQueue) Len() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.q.Length()
}

// Drain removes and returns every task currently queued, in FIFO order,
// leaving the queue empty. Per spec.md §4.3's livelock-prevention rule,
// tasks pushed by a handler invoked during Drain's own processing are
// NOT included — they land in the queue for the next Drain call.
func (tq *TaskQueue) Drain() []*Task {
	tq.mu.Lock()
	n := tq.q.Length()
	if n == 0 {
		tq.mu.Unlock()
		return nil
	}
	out := make([]*Task, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, tq.q.Remove().(*Task))
	}
	tq.mu.Unlock()
	return out
}

// Run executes a drained task, honoring token cancellation and
// signalling the completion gate if present. Called by the owning
// EventLoop on its own thread.
func Run(t *Task) {
	defer func() {
		if t.gate != nil {
			close(t.gate)
		}
	}()
	if t.token != nil && t.token.Cancelled() {
		return
	}
	t.thunk()
}

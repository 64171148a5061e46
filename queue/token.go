// File: queue/token.go
// Author: momentics <momentics@gmail.com>
//
// Token is an opaque identity for grouping cancelable deferred work,
// per spec.md §3/§4.3. Tokens are moveable but not copyable in the
// original source; in Go that invariant becomes "always pass *Token".

package queue

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Token identifies a group of deferred tasks that can be cancelled
// together. Cancelling a token marks every queued-but-not-yet-started
// task bearing it as skipped; a task already running completes normally.
type Token struct {
	id        uuid.UUID
	cancelled atomic.Bool
}

// NewToken creates a fresh, not-yet-cancelled token with a unique id.
func NewToken() *Token {
	return &Token{id: uuid.New()}
}

// ID returns the token's opaque unique identity, useful for logging.
func (t *Token) ID() string {
	return t.id.String()
}

// Cancel marks the token cancelled. Idempotent.
func (t *Token) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called.
func (t *Token) Cancelled() bool {
	return t.cancelled.Load()
}

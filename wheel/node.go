// File: wheel/node.go
// Package wheel implements the hierarchical timing wheel.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Node is the intrusive, doubly-linked list element threaded into a
// wheel bucket. A node lives in exactly one bucket's list, or none.

package wheel

// Handler is invoked when a Node's expiry fires.
type Handler func()

// Node is a single scheduled timer, threaded into an intrusive
// doubly-linked list headed by a bucket. Cancelling sets the cancelled
// flag and unlinks the node from its bucket at once.
type Node struct {
	expiryTick uint64
	cancelled  bool
	pending    bool // true while linked into a bucket
	handler    Handler

	prev *Node
	next *Node

	// bucket is the list head this node currently belongs to, used to
	// unlink in O(1) without walking the bucket.
	bucket *Node
}

// NewNode creates a detached node wrapping handler.
func NewNode(handler Handler) *Node {
	return &Node{handler: handler}
}

// Pending reports whether the node is currently linked into a bucket.
func (n *Node) Pending() bool {
	return n.pending
}

// Cancelled reports whether the node has been marked cancelled. The
// wheel unlinks a node in the same step that marks it cancelled, so a
// cancelled node is not pending and never fires.
func (n *Node) Cancelled() bool {
	return n.cancelled
}

// listInitHead turns n into an empty circular list head.
func listInitHead(head *Node) {
	head.prev = head
	head.next = head
}

// listEmpty reports whether head's circular list has no elements.
func listEmpty(head *Node) bool {
	return head.next == head
}

// listAdd appends n to the list headed by head (insertion order
// preserved: new nodes go at the tail, so firing walks oldest-first).
func listAdd(head, n *Node) {
	last := head.prev
	last.next = n
	n.prev = last
	n.next = head
	head.prev = n
	n.bucket = head
	n.pending = true
}

// listRemove unlinks n from whatever list it is in. Safe to call on an
// already-unlinked node.
func listRemove(n *Node) {
	if !n.pending {
		return
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.prev = nil
	n.next = nil
	n.bucket = nil
	n.pending = false
}

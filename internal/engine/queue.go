package engine

import (
	"context"
	"sync"
)

// refreshQueue is a thread-safe FIFO set of nodes awaiting recomputation.
//
// A node already waiting is not queued twice, so a burst of writes to one
// base relation costs one refresh per dependent view. The queue also tracks
// nodes being worked on so Quiesce can wait for in-flight refreshes.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in worker loops.
type refreshQueue struct {
	mu       sync.Mutex
	nodes    []NodeID
	pending  map[NodeID]bool
	inflight int
	closed   bool
	signal   chan struct{} // Signals work availability (buffered, size 1)
	idle     chan struct{} // Closed while the queue is empty and nothing is in flight
}

// newRefreshQueue creates an empty, idle queue.
func newRefreshQueue() *refreshQueue {
	idle := make(chan struct{})
	close(idle)
	return &refreshQueue{
		nodes:   make([]NodeID, 0, 64),
		pending: make(map[NodeID]bool),
		signal:  make(chan struct{}, 1),
		idle:    idle,
	}
}

// Enqueue adds a node to the back of the queue unless it is already waiting.
// Returns false if the queue is closed.
func (q *refreshQueue) Enqueue(id NodeID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.pending[id] {
		return true
	}

	q.markBusy()
	q.pending[id] = true
	q.nodes = append(q.nodes, id)
	q.notify()
	return true
}

// TryDequeue removes the front node without blocking. A successful dequeue
// must be followed by Done once the node is processed.
func (q *refreshQueue) TryDequeue() (NodeID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.nodes) == 0 {
		return 0, false
	}

	id := q.nodes[0]
	if len(q.nodes) == 1 {
		q.nodes = q.nodes[:0]
	} else {
		q.nodes = q.nodes[1:]
	}
	delete(q.pending, id)
	q.inflight++

	// Wake another worker if more work remains.
	if len(q.nodes) > 0 {
		q.notify()
	}
	return id, true
}

// Done marks one dequeued node as processed.
func (q *refreshQueue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.inflight--
	if q.inflight == 0 && len(q.nodes) == 0 {
		close(q.idle)
	}
}

// Wait returns a channel that signals when work may be available.
func (q *refreshQueue) Wait() <-chan struct{} {
	return q.signal
}

// WaitIdle blocks until the queue is empty with nothing in flight.
func (q *refreshQueue) WaitIdle(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-idle:
		return nil
	}
}

// Len returns the number of waiting nodes.
func (q *refreshQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.nodes)
}

// Close signals that no more nodes will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *refreshQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// markBusy opens a fresh idle channel when the queue leaves the idle state.
// Caller holds q.mu.
func (q *refreshQueue) markBusy() {
	if q.inflight == 0 && len(q.nodes) == 0 {
		q.idle = make(chan struct{})
	}
}

// notify signals availability without blocking; the buffer of 1 coalesces
// signals. Caller holds q.mu.
func (q *refreshQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

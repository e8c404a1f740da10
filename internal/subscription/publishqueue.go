package subscription

import (
	"sync"
	"time"
)

// PublishRequest is one queued client PublishRequest awaiting a response,
// held in a simple per-session FIFO.
type PublishRequest struct {
	RequestID uint32
	Deadline  time.Time
}

// PublishRequestQueue is a per-session FIFO of outstanding PublishRequests
// shared across every Subscription that session owns, since one
// PublishRequest may satisfy whichever subscription has data first
// (Part 4 §5.13.5: "PublishRequests are not bound to a single
// Subscription until the server pulls one to answer a ready
// subscription").
type PublishRequestQueue struct {
	mu    sync.Mutex
	items []PublishRequest
}

// NewPublishRequestQueue returns an empty queue.
func NewPublishRequestQueue() *PublishRequestQueue {
	return &PublishRequestQueue{}
}

// Push enqueues a new PublishRequest.
func (q *PublishRequestQueue) Push(req PublishRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, req)
}

// Pop removes and returns the oldest non-expired PublishRequest, or
// ok=false if the queue is empty. Expired requests are discarded silently
// as Pop walks the queue, matching the reference stack's lazy expiry.
func (q *PublishRequestQueue) Pop(now time.Time) (PublishRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) > 0 {
		req := q.items[0]
		q.items = q.items[1:]
		if req.Deadline.IsZero() || req.Deadline.After(now) {
			return req, true
		}
	}
	return PublishRequest{}, false
}

// Len reports how many requests are currently queued, including any that
// have already expired but not yet been popped.
func (q *PublishRequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

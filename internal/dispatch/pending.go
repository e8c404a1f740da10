package dispatch

import (
	"sync"
	"time"
)

// PendingOp is a continuation record for a request whose response is not
// ready at dispatch time — chiefly PublishRequest, which parks until a
// Subscription has something to report. Resolve delivers the eventual
// response (or timeout error) to whichever goroutine is waiting on Wait.
type PendingOp struct {
	RequestHandle uint32
	Deadline      time.Time

	mu       sync.Mutex
	done     chan struct{}
	response interface{}
	err      error
	resolved bool
}

// NewPendingOp creates a not-yet-resolved operation with the given
// deadline (zero for no deadline).
func NewPendingOp(requestHandle uint32, deadline time.Time) *PendingOp {
	return &PendingOp{
		RequestHandle: requestHandle,
		Deadline:      deadline,
		done:          make(chan struct{}),
	}
}

// Resolve completes the operation with resp/err. Calling Resolve more
// than once is a no-op; only the first call has any effect.
func (p *PendingOp) Resolve(resp interface{}, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return
	}
	p.response, p.err, p.resolved = resp, err, true
	close(p.done)
}

// Wait blocks until Resolve is called or done is closed (e.g. by the
// caller's own timeout/cancellation), returning the resolved value.
func (p *PendingOp) Wait(done <-chan struct{}) (interface{}, error, bool) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.response, p.err, true
	case <-done:
		return nil, nil, false
	}
}

// PendingSet tracks every PendingOp awaiting resolution for one session,
// keyed by request handle, so a later event (a subscription tick, a
// session close) can look one up and resolve it.
type PendingSet struct {
	mu    sync.Mutex
	byHandle map[uint32]*PendingOp
}

// NewPendingSet returns an empty set.
func NewPendingSet() *PendingSet {
	return &PendingSet{byHandle: make(map[uint32]*PendingOp)}
}

// Add registers op, replacing any existing entry for the same handle.
func (s *PendingSet) Add(op *PendingOp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHandle[op.RequestHandle] = op
}

// Take removes and returns the PendingOp for handle, if any.
func (s *PendingSet) Take(handle uint32) (*PendingOp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.byHandle[handle]
	if ok {
		delete(s.byHandle, handle)
	}
	return op, ok
}

// ResolveExpired resolves and removes every pending op whose deadline has
// passed, with a timeout error.
func (s *PendingSet) ResolveExpired(now time.Time, timeoutErr error) {
	s.mu.Lock()
	var expired []*PendingOp
	for h, op := range s.byHandle {
		if !op.Deadline.IsZero() && now.After(op.Deadline) {
			expired = append(expired, op)
			delete(s.byHandle, h)
		}
	}
	s.mu.Unlock()

	for _, op := range expired {
		op.Resolve(nil, timeoutErr)
	}
}

// Package eventloop implements the single-threaded cooperative scheduler
// that drives the SecureChannel/Session/Subscription engine: timers,
// delayed callbacks, and registered event sources are all dispatched from
// one goroutine via repeated calls to Run, collapsed to exactly one
// goroutine since the engine's state (sequence numbers, token lifecycles,
// publish queues) is not safe for concurrent mutation.
package eventloop

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the EventLoop's lifecycle state machine: Fresh -> Started ->
// Stopping -> Stopped. A loop never returns to an earlier state.
type State int

const (
	StateFresh State = iota
	StateStarted
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Source is an external event producer (a socket listener, a channel
// consumer) the loop polls once per Run iteration. Implementations must
// not block; Poll should return immediately whether or not work was found.
type Source interface {
	// Poll executes any ready work and returns true if it did any, so the
	// loop knows not to sleep through the remainder of the timeout budget.
	Poll(ctx context.Context) (didWork bool)
}

// CancelFunc cancels a previously scheduled timer or delayed callback.
// Calling it after the callback has already fired, or more than once, is a
// no-op.
type CancelFunc func()

// EventLoop is a single-threaded cooperative scheduler. Its exported
// methods may be called from any goroutine (RegisterSource only as its own
// doc allows); Run itself must only ever execute on one goroutine at a
// time.
type EventLoop struct {
	mu       sync.Mutex
	state    State
	timers   timerHeap
	nextID   uint64
	callbacks []callbackEntry
	wake     chan struct{}
	logger   zerolog.Logger
	sources  []Source
}

type callbackEntry struct {
	id       uint64
	fn       func()
	canceled bool
}

// New constructs a fresh EventLoop. It must be started with Start before
// Run is called.
func New(logger zerolog.Logger) *EventLoop {
	el := &EventLoop{
		state:  StateFresh,
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
	heap.Init(&el.timers)
	return el
}

// State returns the loop's current lifecycle state.
func (el *EventLoop) State() State {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.state
}

// Start transitions Fresh -> Started. Calling Start twice, or calling it
// after Stop, returns an error.
func (el *EventLoop) Start() error {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.state != StateFresh {
		return fmt.Errorf("eventloop: Start called in state %s, want %s", el.state, StateFresh)
	}
	el.state = StateStarted
	return nil
}

// RegisterSource adds a Source to be polled on every Run iteration. Must
// be called before the loop is started running, or from within Run.
func (el *EventLoop) RegisterSource(s Source) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.sources = append(el.sources, s)
}

// Stop transitions the loop to Stopping; the next Run call will finish any
// already-due work, run once more, then move to Stopped and return false
// from Run thereafter. Calling Stop from outside the loop's own goroutine
// is the normal shutdown path (it just needs to also call Wake to unblock
// a Run that is currently parked waiting for a timeout).
func (el *EventLoop) Stop() {
	el.mu.Lock()
	if el.state == StateStarted {
		el.state = StateStopping
	}
	el.mu.Unlock()
	el.Wake()
}

// Wake unblocks a Run call that is currently parked waiting out its
// timeout budget, so newly scheduled work (added from another goroutine,
// e.g. a transport's read callback) runs without waiting for the timeout
// to elapse naturally.
func (el *EventLoop) Wake() {
	select {
	case el.wake <- struct{}{}:
	default:
	}
}

// AddCallback schedules fn to run on the next Run iteration. Safe to call
// from any goroutine.
func (el *EventLoop) AddCallback(fn func()) CancelFunc {
	el.mu.Lock()
	id := el.nextID
	el.nextID++
	el.callbacks = append(el.callbacks, callbackEntry{id: id, fn: fn})
	el.mu.Unlock()
	el.Wake()
	return func() {
		el.mu.Lock()
		defer el.mu.Unlock()
		for i := range el.callbacks {
			if el.callbacks[i].id == id {
				el.callbacks[i].canceled = true
				return
			}
		}
	}
}

// Run executes one iteration: fire every due timer and pending callback,
// poll every registered Source, then sleep for at most timeout waiting for
// new work (a Wake call, or the next timer deadline, whichever is
// sooner). Run returns false once the loop has reached Stopped, at which
// point the caller's driving loop (typically cmd/opcua-server's main
// goroutine) should stop calling Run.
func (el *EventLoop) Run(ctx context.Context, timeout time.Duration) bool {
	el.mu.Lock()
	if el.state == StateStopped {
		el.mu.Unlock()
		return false
	}
	stopping := el.state == StateStopping
	el.mu.Unlock()

	el.runDueTimers()
	el.runCallbacks()

	didWork := false
	for _, src := range el.sources {
		if src.Poll(ctx) {
			didWork = true
		}
	}

	if stopping {
		el.mu.Lock()
		el.state = StateStopped
		el.mu.Unlock()
		return false
	}

	if didWork {
		return true
	}

	sleepFor := timeout
	if d, ok := el.nextTimerDeadline(); ok && d < sleepFor {
		sleepFor = d
	}
	if sleepFor < 0 {
		sleepFor = 0
	}

	select {
	case <-el.wake:
	case <-time.After(sleepFor):
	case <-ctx.Done():
	}
	return true
}

func (el *EventLoop) runCallbacks() {
	el.mu.Lock()
	pending := el.callbacks
	el.callbacks = nil
	el.mu.Unlock()

	for _, cb := range pending {
		if cb.canceled {
			continue
		}
		el.runProtected(cb.fn)
	}
}

// runProtected executes fn with panic recovery so one misbehaving
// callback cannot tear down the whole loop, mirroring the worker pool's
// per-task panic isolation.
func (el *EventLoop) runProtected(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			el.logger.Error().
				Interface("panic_value", r).
				Msg("eventloop: callback panic recovered")
		}
	}()
	fn()
}

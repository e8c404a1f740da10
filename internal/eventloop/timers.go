package eventloop

import (
	"container/heap"
	"time"
)

// timerEntry is one scheduled timer. Periodic timers with interval > 0
// reschedule themselves relative to "now" rather than to the missed
// deadline, so a loop that was blocked for longer than one interval skips
// the missed firings instead of bursting through all of them at once.
type timerEntry struct {
	id       uint64
	deadline time.Time
	interval time.Duration // 0 for a one-shot timer
	fn       func()
	canceled bool
	index    int // heap.Interface bookkeeping
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}

func (h *timerHeap) Push(x interface{}) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// AddTimer schedules fn to run once after delay elapses. Safe to call
// from any goroutine.
func (el *EventLoop) AddTimer(delay time.Duration, fn func()) CancelFunc {
	return el.addTimer(delay, 0, fn)
}

// AddPeriodicTimer schedules fn to run every interval, starting after the
// first interval elapses. If the loop falls behind, missed firings are
// skipped rather than queued (see timerEntry).
func (el *EventLoop) AddPeriodicTimer(interval time.Duration, fn func()) CancelFunc {
	return el.addTimer(interval, interval, fn)
}

func (el *EventLoop) addTimer(delay, interval time.Duration, fn func()) CancelFunc {
	el.mu.Lock()
	id := el.nextID
	el.nextID++
	e := &timerEntry{
		id:       id,
		deadline: time.Now().Add(delay),
		interval: interval,
		fn:       fn,
	}
	heap.Push(&el.timers, e)
	el.mu.Unlock()
	el.Wake()

	return func() {
		el.mu.Lock()
		defer el.mu.Unlock()
		for _, t := range el.timers {
			if t.id == id {
				t.canceled = true
				return
			}
		}
	}
}

// runDueTimers fires every timer whose deadline has passed, rescheduling
// periodic ones relative to the current time.
func (el *EventLoop) runDueTimers() {
	now := time.Now()
	for {
		el.mu.Lock()
		if el.timers.Len() == 0 || el.timers[0].deadline.After(now) {
			el.mu.Unlock()
			return
		}
		e := heap.Pop(&el.timers).(*timerEntry)
		canceled := e.canceled
		if !canceled && e.interval > 0 {
			e.deadline = now.Add(e.interval)
			heap.Push(&el.timers, e)
		}
		el.mu.Unlock()

		if !canceled {
			el.runProtected(e.fn)
		}
	}
}

// nextTimerDeadline returns the duration until the nearest pending timer's
// deadline, or ok=false if there are no pending timers.
func (el *EventLoop) nextTimerDeadline() (time.Duration, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if el.timers.Len() == 0 {
		return 0, false
	}
	d := time.Until(el.timers[0].deadline)
	if d < 0 {
		d = 0
	}
	return d, true
}

package subscription

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opcua-go/uacore/internal/eventloop"
)

// Manager owns every Subscription for one session and drives their
// publishing cycles from the event loop's periodic timer, dispatching
// ready NotificationMessages to a Sender (internal/server wires in its
// publishNotification).
type Manager struct {
	mu            sync.Mutex
	subscriptions map[uint32]*Subscription
	requests      *PublishRequestQueue
	logger        zerolog.Logger
	nextID        uint32

	Sender func(msg NotificationMessage, subscriptionID uint32)
}

// NewManager constructs a Manager and schedules its tick on loop every
// tickInterval. Each tick advances every subscription by one publishing
// cycle; a subscription's own PublishingInterval does not decide when it
// is ticked.
func NewManager(loop *eventloop.EventLoop, tickInterval time.Duration, logger zerolog.Logger) *Manager {
	m := &Manager{
		subscriptions: make(map[uint32]*Subscription),
		requests:      NewPublishRequestQueue(),
		logger:        logger,
	}
	loop.AddPeriodicTimer(tickInterval, m.tickAll)
	return m
}

// Create allocates and registers a new Subscription, returning its id.
func (m *Manager) Create(interval time.Duration, maxKeepAlive, lifetimeCount, maxNotifications uint32) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	sub := NewSubscription(m.nextID, interval, maxKeepAlive, lifetimeCount, maxNotifications)
	m.subscriptions[sub.ID] = sub
	return sub
}

// Delete removes a subscription by id.
func (m *Manager) Delete(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, id)
}

// Get returns the subscription for id, if any.
func (m *Manager) Get(id uint32) (*Subscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[id]
	return s, ok
}

// SubmitPublishRequest enqueues a client PublishRequest available to
// satisfy whichever subscription has data first.
func (m *Manager) SubmitPublishRequest(req PublishRequest) {
	m.requests.Push(req)
}

// tickAll advances every subscription's publishing cycle by one step,
// consuming one queued PublishRequest per subscription that has
// something to report.
func (m *Manager) tickAll() {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	now := time.Now()
	for _, s := range subs {
		req, hasReq := m.requests.Pop(now)
		result := s.Tick(hasReq)
		if result.Expired {
			m.Delete(s.ID)
			m.logger.Info().Uint32("subscription_id", s.ID).Msg("subscription: lifetime exceeded, closing")
			continue
		}
		if result.Message != nil && m.Sender != nil {
			m.Sender(*result.Message, s.ID)
		} else if result.Message == nil && hasReq {
			// No data was ready for this subscription even though a
			// request was available; return it to the pool for the next
			// subscription in this tick.
			m.requests.Push(req)
		}
	}
}

// Count returns the number of live subscriptions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}

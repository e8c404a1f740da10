package subscription

import (
	"sync"
	"time"

	"github.com/opcua-go/uacore/internal/ua"
)

// CycleState is the publishing-cycle state machine (Part 4 §5.13.1.2):
// Normal while notifications are flowing, Late once publish requests run
// out while there is data to send, KeepAlive once MaxKeepAliveCount
// publishing cycles pass with nothing to report, Closed once
// LifetimeCount cycles pass with no publish request available at all.
type CycleState int

const (
	CycleNormal CycleState = iota
	CycleLate
	CycleKeepAlive
	CycleClosed
)

// NotificationMessage is one published batch: a sequence number, a
// timestamp, and the DataChange notifications carried in it.
type NotificationMessage struct {
	SequenceNumber uint32
	PublishTime    time.Time
	DataChanges    []DataChangeNotification
}

// DataChangeNotification pairs a MonitoredItem's client handle with its
// queued values.
type DataChangeNotification struct {
	ClientHandle uint32
	Values       []ua.DataValue
}

// Subscription drives one client subscription's publishing cycle (Part 4
// §5.13's Normal/Late/KeepAlive states), with a set of interested
// MonitoredItems per subscription.
type Subscription struct {
	mu sync.Mutex

	ID                         uint32
	PublishingInterval         time.Duration
	MaxKeepAliveCount          uint32
	LifetimeCount              uint32
	MaxNotificationsPerPublish uint32
	PublishingEnabled          bool

	items  map[uint32]*MonitoredItem
	nextSN uint32

	state              CycleState
	keepAliveCounter   uint32
	lifetimeCounter    uint32
	lastPublishAt      time.Time

	retransmit *retransmissionQueue
}

// NewSubscription constructs a Subscription in the Normal state with an
// empty item set and sequence numbers starting at 1: NotificationMessage
// sequence numbers, like SecureChannel sequence numbers, start at 1;
// unlike the channel's counter they do not wrap in practice within a
// subscription's lifetime and this package does not special-case it.
func NewSubscription(id uint32, interval time.Duration, maxKeepAlive, lifetimeCount, maxNotifications uint32) *Subscription {
	return &Subscription{
		ID:                         id,
		PublishingInterval:         interval,
		MaxKeepAliveCount:          maxKeepAlive,
		LifetimeCount:              lifetimeCount,
		MaxNotificationsPerPublish: maxNotifications,
		PublishingEnabled:          true,
		items:                      make(map[uint32]*MonitoredItem),
		nextSN:                     1,
		retransmit:                 newRetransmissionQueue(100),
	}
}

// AddItem registers a MonitoredItem with the subscription.
func (s *Subscription) AddItem(item *MonitoredItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// RemoveItem deregisters a MonitoredItem.
func (s *Subscription) RemoveItem(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

// SetPublishingEnabled toggles whether Tick ever produces notifications;
// keep-alives still fire while disabled, matching SetPublishingMode.
func (s *Subscription) SetPublishingEnabled(enabled bool) {
	s.mu.Lock()
	s.PublishingEnabled = enabled
	s.mu.Unlock()
}

// Tick advances the publishing cycle by one PublishingInterval. hasRequest
// reports whether a client PublishRequest is currently available to carry
// a response; result.Message is non-nil exactly when a PublishResponse
// (data or keep-alive) should be sent now.
type TickResult struct {
	Message *NotificationMessage
	Expired bool
}

func (s *Subscription) Tick(hasRequest bool) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == CycleClosed {
		return TickResult{Expired: true}
	}

	var pending []DataChangeNotification
	if s.PublishingEnabled {
		for _, item := range s.items {
			if item.Pending() == 0 {
				continue
			}
			pending = append(pending, DataChangeNotification{
				ClientHandle: item.ID,
				Values:       item.Drain(),
			})
		}
	}

	hasData := len(pending) > 0

	switch {
	case hasData && hasRequest:
		msg := s.buildMessage(pending)
		s.keepAliveCounter = 0
		s.lifetimeCounter = 0
		s.state = CycleNormal
		return TickResult{Message: msg}

	case hasData && !hasRequest:
		// Data is ready but no PublishRequest is available to carry it;
		// the subscription goes Late and counts toward its lifetime.
		s.state = CycleLate
		s.lifetimeCounter++
		if s.lifetimeCounter >= s.LifetimeCount {
			s.state = CycleClosed
			return TickResult{Expired: true}
		}
		return TickResult{}

	default:
		s.keepAliveCounter++
		if !hasRequest {
			s.lifetimeCounter++
			if s.lifetimeCounter >= s.LifetimeCount {
				s.state = CycleClosed
				return TickResult{Expired: true}
			}
		}
		if s.keepAliveCounter >= s.MaxKeepAliveCount && hasRequest {
			s.keepAliveCounter = 0
			s.lifetimeCounter = 0
			s.state = CycleKeepAlive
			return TickResult{Message: &NotificationMessage{
				SequenceNumber: s.peekSN(),
				PublishTime:    time.Now(),
			}}
		}
		return TickResult{}
	}
}

func (s *Subscription) buildMessage(pending []DataChangeNotification) *NotificationMessage {
	msg := &NotificationMessage{
		SequenceNumber: s.nextSN,
		PublishTime:    time.Now(),
		DataChanges:    pending,
	}
	s.nextSN++
	s.retransmit.push(*msg)
	return msg
}

// peekSN returns the sequence number a keep-alive would carry without
// consuming one: keep-alives repeat the last data message's sequence
// number rather than advancing it (Part 4 §5.13.1.2).
func (s *Subscription) peekSN() uint32 {
	if s.nextSN == 1 {
		return 0
	}
	return s.nextSN - 1
}

// Republish returns the retained NotificationMessage for sn, or false if
// it has already fallen out of the retransmission queue (the caller
// should respond with BadMessageNotAvailable).
func (s *Subscription) Republish(sn uint32) (NotificationMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retransmit.lookup(sn)
}

// Acknowledge removes sn from the retransmission queue in response to a
// client's SubscriptionAcknowledgement, reporting whether sn was actually
// held (a client acking a sequence number twice, or one already evicted
// by capacity, is not an error but is worth the caller knowing about).
func (s *Subscription) Acknowledge(sn uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retransmit.acknowledge(sn)
}

func (s *Subscription) State() CycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Package subscription implements the publishing engine:
// MonitoredItems, the publishing-cycle state machine, the retransmission
// queue backing Republish, deadband filtering, and per-item queue overflow
// handling.
package subscription

import (
	"time"

	"github.com/opcua-go/uacore/internal/ua"
)

// DiscardPolicy controls what a MonitoredItem's queue does once full.
type DiscardPolicy int

const (
	// DiscardOldest drops the oldest queued value to make room (the OPC UA
	// default when DiscardOldest=true).
	DiscardOldest DiscardPolicy = iota
	// DiscardNewest drops the incoming value, leaving the queue untouched.
	DiscardNewest
)

// DeadbandType selects how MonitoredItem filters numeric data changes.
type DeadbandType int

const (
	DeadbandNone DeadbandType = iota
	DeadbandAbsolute
	DeadbandPercent
)

// MonitoredItem samples one node/attribute and queues DataValue changes
// for its owning Subscription to publish.
type MonitoredItem struct {
	ID              uint32
	NodeID          ua.NodeId
	AttributeID     uint32
	SamplingInterval time.Duration
	QueueSize       uint32
	Discard         DiscardPolicy

	Deadband     DeadbandType
	DeadbandValue float64

	queue    []ua.DataValue
	lastSent ua.DataValue
	hasLast  bool
}

// NewMonitoredItem constructs a MonitoredItem with the given sampling
// parameters. QueueSize must be at least 1 (the reference stack clamps a
// requested 0 up to 1).
func NewMonitoredItem(id uint32, nodeID ua.NodeId, attr uint32, sampling time.Duration, queueSize uint32, discard DiscardPolicy) *MonitoredItem {
	if queueSize == 0 {
		queueSize = 1
	}
	return &MonitoredItem{
		ID:               id,
		NodeID:           nodeID,
		AttributeID:      attr,
		SamplingInterval: sampling,
		QueueSize:        queueSize,
		Discard:          discard,
	}
}

// Sample offers a freshly sampled value to the item. It is filtered
// against the configured deadband, then enqueued subject to the overflow
// policy. It returns false only when the deadband suppresses the value; a
// value dropped by DiscardNewest on a full queue still returns true.
func (m *MonitoredItem) Sample(dv ua.DataValue) bool {
	if m.hasLast && m.Deadband != DeadbandNone && suppressedByDeadband(m.lastSent, dv, m.Deadband, m.DeadbandValue) {
		return false
	}
	m.lastSent = dv
	m.hasLast = true

	if uint32(len(m.queue)) >= m.QueueSize {
		switch m.Discard {
		case DiscardOldest:
			m.queue = append(m.queue[1:], dv)
		case DiscardNewest:
			// incoming value dropped, queue unchanged
		}
		return true
	}
	m.queue = append(m.queue, dv)
	return true
}

// Drain removes and returns every queued value, emptying the queue. This
// is the read path the publishing cycle uses to build a NotificationMessage.
func (m *MonitoredItem) Drain() []ua.DataValue {
	out := m.queue
	m.queue = nil
	return out
}

// Pending reports how many values are currently queued.
func (m *MonitoredItem) Pending() int { return len(m.queue) }

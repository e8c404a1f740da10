// Package dispatch implements the service request/response shim:
// decoding a request's type id, routing it to a registered handler,
// enforcing one concurrent-request quota for all callers, and tracking pending
// asynchronous operations (PublishRequests chief among them) that do not
// resolve within the same dispatch call.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opcua-go/uacore/internal/ua"
)

// RequestHeader is the common envelope every service request carries.
type RequestHeader struct {
	AuthenticationToken ua.NodeId
	Timestamp           time.Time
	RequestHandle       uint32
	ReturnDiagnostics   uint32
	Timeout             time.Duration
}

// ResponseHeader is the common envelope every service response carries.
type ResponseHeader struct {
	Timestamp         time.Time
	RequestHandle     uint32
	ServiceResult     ua.StatusCode
	StringTable       []string
}

// Handler processes one decoded request body and returns a response body
// (both as the concrete Go struct registered for that request type) or an
// error that becomes the response's ServiceResult.
type Handler func(ctx context.Context, req interface{}) (interface{}, error)

// Quotas bounds how much work a Dispatcher admits at once. Only
// MaxConcurrentRequests is enforced, across every caller of the
// Dispatcher; MaxPendingPublishes is not checked by the Dispatcher.
type Quotas struct {
	MaxConcurrentRequests int
	MaxPendingPublishes   int
}

// DefaultQuotas matches the reference stack's conservative defaults.
func DefaultQuotas() Quotas {
	return Quotas{MaxConcurrentRequests: 100, MaxPendingPublishes: 20}
}

// Dispatcher routes decoded requests, by their registered type id, to a
// Handler. One Dispatcher is shared across every session on a server, and
// its concurrent-request quota counts all of their calls together; there
// is no per-session or per-channel accounting.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[ua.NodeId]Handler
	quotas   Quotas
	sem      chan struct{}
}

// NewDispatcher constructs an empty Dispatcher enforcing quotas.
func NewDispatcher(quotas Quotas) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[ua.NodeId]Handler),
		quotas:   quotas,
		sem:      make(chan struct{}, quotas.MaxConcurrentRequests),
	}
}

// Register binds requestTypeID (the request's binary-encoding NodeId) to
// a Handler.
func (d *Dispatcher) Register(requestTypeID ua.NodeId, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[requestTypeID] = h
}

// Dispatch routes req (already decoded by the caller using the same
// requestTypeID it passes here) to its registered handler, applying the
// concurrent-request quota as a bounded semaphore.
func (d *Dispatcher) Dispatch(ctx context.Context, requestTypeID ua.NodeId, req interface{}) (interface{}, error) {
	d.mu.RLock()
	h, ok := d.handlers[requestTypeID]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("dispatch: no handler registered for %s: %w", requestTypeID, ua.BadNodeIdUnknown)
	}

	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-d.sem }()

	return h(ctx, req)
}

// InFlight returns the current number of requests occupying the
// concurrency quota.
func (d *Dispatcher) InFlight() int {
	return len(d.sem)
}

package server

import (
	"context"
	"fmt"
	"time"

	"github.com/opcua-go/uacore/internal/dispatch"
	"github.com/opcua-go/uacore/internal/nodestore"
	"github.com/opcua-go/uacore/internal/session"
	"github.com/opcua-go/uacore/internal/subscription"
	"github.com/opcua-go/uacore/internal/ua"
)

// Binary-encoding type ids for the services this engine speaks, taken
// from Part 6's numeric node-id assignments in namespace 0. Only the
// subset of fields dispatch's handlers actually consult is decoded;
// everything else in a request body is skipped rather than modeled as a
// full generated struct, since the engine's job is routing and
// lifecycle, not restating the entire standard service set.
var (
	typeCreateSessionRequest      = ua.NewNumericNodeId(0, 461)
	typeActivateSessionRequest    = ua.NewNumericNodeId(0, 467)
	typeCloseSessionRequest       = ua.NewNumericNodeId(0, 473)
	typeCreateSubscriptionRequest = ua.NewNumericNodeId(0, 787)
	typePublishRequest            = ua.NewNumericNodeId(0, 826)
	typeReadRequest                = ua.NewNumericNodeId(0, 631)
	typeWriteRequest               = ua.NewNumericNodeId(0, 673)
)

// CreateSessionArgs/Response are the subset of CreateSessionRequest /
// CreateSessionResponse this engine exchanges.
type CreateSessionArgs struct {
	ClientDescription string
	SessionName       string
	RequestedTimeout  time.Duration
}

type CreateSessionResult struct {
	SessionID           ua.NodeId
	AuthenticationToken ua.NodeId
	ServerNonce         []byte
	RevisedTimeout      time.Duration
}

// ActivateSessionArgs carries the pieces ActivateSession needs: the
// session to bind (resolved by the caller from RequestHeader's
// AuthenticationToken) and the identity token to validate.
type ActivateSessionArgs struct {
	Channel  *session.Session // re-homed onto the request's channel by handleActivateSession
	Identity session.IdentityTokenRequest
}

type ActivateSessionResult struct {
	ServerNonce []byte
}

// CreateSubscriptionArgs/Result mirror the handful of CreateSubscription
// parameters the publishing engine actually consumes.
type CreateSubscriptionArgs struct {
	RequestedPublishingInterval time.Duration
	RequestedMaxKeepAliveCount  uint32
	RequestedLifetimeCount      uint32
	MaxNotificationsPerPublish  uint32
	PublishingEnabled           bool
}

type CreateSubscriptionResult struct {
	SubscriptionID         uint32
	RevisedPublishingInterval time.Duration
}

// SubscriptionAcknowledgement names one previously-sent NotificationMessage
// a client confirms it has received, by the subscription it belongs to and
// its sequence number within that subscription.
type SubscriptionAcknowledgement struct {
	SubscriptionID uint32
	SequenceNumber uint32
}

// PublishArgs/Result is the PublishRequest/Response pair: the client
// offers a request to carry whichever subscription has data first, and
// acknowledges any previously-sent sequence numbers it has already
// consumed so the owning Subscription can evict them from its
// retransmission queue.
type PublishArgs struct {
	SubscriptionAcknowledgements []SubscriptionAcknowledgement
}

type PublishResult struct {
	SubscriptionID uint32
	Notification   subscription.NotificationMessage
}

// ReadArgs/Result and WriteArgs/Result expose nodestore.NodeStore through
// dispatch, gated by nodestore.AccessControl.
type ReadArgs struct {
	Identity session.Identity
	NodeID   ua.NodeId
	AttrID   nodestore.AttributeID
}

type ReadResult struct {
	Value ua.DataValue
}

type WriteArgs struct {
	Identity session.Identity
	NodeID   ua.NodeId
	AttrID   nodestore.AttributeID
	Value    ua.DataValue
}

type WriteResult struct {
	StatusCode ua.StatusCode
}

// registerHandlers binds every service this engine understands to s's
// Dispatcher, closing over the session/subscription managers and
// nodestore collaborators those handlers need.
func (s *Server) registerHandlers() {
	s.dispatcher.Register(typeCreateSessionRequest, s.handleCreateSession)
	s.dispatcher.Register(typeActivateSessionRequest, s.handleActivateSession)
	s.dispatcher.Register(typeCloseSessionRequest, s.handleCloseSession)
	s.dispatcher.Register(typeCreateSubscriptionRequest, s.handleCreateSubscription)
	s.dispatcher.Register(typePublishRequest, s.handlePublish)
	s.dispatcher.Register(typeReadRequest, s.handleRead)
	s.dispatcher.Register(typeWriteRequest, s.handleWrite)
}

func (s *Server) handleCreateSession(ctx context.Context, req interface{}) (interface{}, error) {
	args, ok := req.(CreateSessionArgs)
	if !ok {
		return nil, fmt.Errorf("server: CreateSession handler got %T, want CreateSessionArgs", req)
	}
	ch, ok := channelFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("server: CreateSession called without a channel in context")
	}
	timeout := args.RequestedTimeout
	if timeout <= 0 {
		timeout = s.cfg.SessionTimeout
	}
	sess, err := s.sessions.Create(ch, timeout)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionsCreated.Inc()
	s.metrics.SessionsActive.Set(float64(s.sessions.Count()))
	s.audit.Info("SessionCreated", "CreateSession succeeded", map[string]interface{}{
		"session_id": sess.SessionID.String(),
		"name":       args.SessionName,
	})
	return CreateSessionResult{
		SessionID:           sess.SessionID,
		AuthenticationToken: sess.AuthenticationToken,
		ServerNonce:         sess.ServerNonce,
		RevisedTimeout:      timeout,
	}, nil
}

func (s *Server) handleActivateSession(ctx context.Context, req interface{}) (interface{}, error) {
	args, ok := req.(ActivateSessionArgs)
	if !ok {
		return nil, fmt.Errorf("server: ActivateSession handler got %T, want ActivateSessionArgs", req)
	}
	ch, ok := channelFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("server: ActivateSession called without a channel in context")
	}
	ident, err := s.identities.Validate(args.Identity)
	if err != nil {
		s.audit.Warning("ActivateSessionRejected", "identity token rejected", map[string]interface{}{
			"session_id": args.Channel.SessionID.String(),
		})
		return nil, err
	}
	if err := args.Channel.Activate(ch, ident); err != nil {
		return nil, err
	}
	s.subsByID(args.Channel.SessionID.String())
	s.audit.ForSession(args.Channel.SessionID.String()).Info("SessionActivated", "ActivateSession succeeded", map[string]interface{}{
		"identity_kind": ident.Kind,
	})
	return ActivateSessionResult{ServerNonce: args.Channel.ServerNonce}, nil
}

func (s *Server) handleCloseSession(ctx context.Context, req interface{}) (interface{}, error) {
	sess, ok := req.(*session.Session)
	if !ok {
		return nil, fmt.Errorf("server: CloseSession handler got %T, want *session.Session", req)
	}
	id := sess.SessionID.String()
	s.sessions.Close(sess.SessionID)
	s.deleteSubsFor(id)
	s.metrics.SessionsActive.Set(float64(s.sessions.Count()))
	s.audit.ForSession(id).Info("SessionClosed", "CloseSession succeeded", nil)
	return struct{}{}, nil
}

func (s *Server) handleCreateSubscription(ctx context.Context, req interface{}) (interface{}, error) {
	args, ok := req.(CreateSubscriptionArgs)
	if !ok {
		return nil, fmt.Errorf("server: CreateSubscription handler got %T, want CreateSubscriptionArgs", req)
	}
	sessID, ok := sessionIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("server: CreateSubscription called without a session in context")
	}
	mgr := s.subsByID(sessID)
	interval := args.RequestedPublishingInterval
	if interval <= 0 {
		interval = s.cfg.PublishTickInterval
	}
	sub := mgr.Create(interval, args.RequestedMaxKeepAliveCount, args.RequestedLifetimeCount, args.MaxNotificationsPerPublish)
	sub.SetPublishingEnabled(args.PublishingEnabled)
	s.metrics.SubscriptionsActive.Inc()
	return CreateSubscriptionResult{SubscriptionID: sub.ID, RevisedPublishingInterval: interval}, nil
}

func (s *Server) handlePublish(ctx context.Context, req interface{}) (interface{}, error) {
	args, ok := req.(PublishArgs)
	if !ok {
		return nil, fmt.Errorf("server: Publish handler got %T, want PublishArgs", req)
	}
	sessID, ok := sessionIDFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("server: Publish called without a session in context")
	}
	mgr := s.subsByID(sessID)
	for _, ack := range args.SubscriptionAcknowledgements {
		if sub, ok := mgr.Get(ack.SubscriptionID); ok {
			sub.Acknowledge(ack.SequenceNumber)
		}
	}
	mgr.SubmitPublishRequest(subscription.PublishRequest{RequestID: requestIDFromContext(ctx)})
	return PublishResult{}, nil
}

func (s *Server) handleRead(ctx context.Context, req interface{}) (interface{}, error) {
	args, ok := req.(ReadArgs)
	if !ok {
		return nil, fmt.Errorf("server: Read handler got %T, want ReadArgs", req)
	}
	if !s.access.AllowRead(ctx, args.Identity, args.NodeID, args.AttrID) {
		return nil, ua.BadUserAccessDenied
	}
	dv, err := s.store.Read(ctx, args.NodeID, args.AttrID)
	if err != nil {
		return nil, err
	}
	return ReadResult{Value: dv}, nil
}

func (s *Server) handleWrite(ctx context.Context, req interface{}) (interface{}, error) {
	args, ok := req.(WriteArgs)
	if !ok {
		return nil, fmt.Errorf("server: Write handler got %T, want WriteArgs", req)
	}
	if !s.access.AllowWrite(ctx, args.Identity, args.NodeID, args.AttrID) {
		return nil, ua.BadUserAccessDenied
	}
	if err := s.store.Write(ctx, args.NodeID, args.AttrID, args.Value); err != nil {
		return WriteResult{StatusCode: ua.BadNotWritable}, err
	}
	return WriteResult{StatusCode: ua.StatusGood}, nil
}

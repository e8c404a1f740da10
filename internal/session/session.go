package session

import (
	"sync"
	"time"

	"github.com/opcua-go/uacore/internal/securechannel"
	"github.com/opcua-go/uacore/internal/ua"
)

// State is the Session lifecycle: Created (CreateSession succeeded, not
// yet activated), Activated (an identity has been accepted), Closed.
type State int

const (
	StateCreated State = iota
	StateActivated
	StateClosed
)

// Session tracks everything CreateSession/ActivateSession/CloseSession
// and the subscription engine need: identifiers, the channel currently
// carrying it (which may change across an ActivateSession call, per
// session transfer), its identity, and its inactivity timeout.
type Session struct {
	mu sync.Mutex

	SessionID           ua.NodeId
	AuthenticationToken ua.NodeId
	ServerNonce         []byte

	state    State
	channel  *securechannel.Channel
	identity Identity

	timeout      time.Duration
	lastActivity time.Time

	maxRequestMessageSize uint32
}

// NewSession constructs a freshly created (not yet activated) Session
// bound to the channel CreateSession arrived on.
func NewSession(sessionID, authToken ua.NodeId, ch *securechannel.Channel, timeout time.Duration) *Session {
	return &Session{
		SessionID:           sessionID,
		AuthenticationToken: authToken,
		state:               StateCreated,
		channel:             ch,
		timeout:             timeout,
		lastActivity:        time.Now(),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel returns the SecureChannel currently carrying this session.
func (s *Session) Channel() *securechannel.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

// Touch resets the inactivity timer; called on every service request
// received for this session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Expired reports whether the session has been idle longer than its
// negotiated timeout.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateClosed && now.Sub(s.lastActivity) > s.timeout
}

// Activate binds ident to the session and, if ch differs from the
// session's current channel, performs session transfer: the session
// continues to exist under a new SecureChannel, discarding its
// association with the old one. ActivateSession on a different channel
// re-homes the session rather than erroring. The supplied identity is
// not compared with the original: ch and ident replace the previous ones
// unconditionally.
func (s *Session) Activate(ch *securechannel.Channel, ident Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ua.BadSessionClosed
	}
	s.channel = ch
	s.identity = ident
	s.state = StateActivated
	s.lastActivity = time.Now()
	return nil
}

// Identity returns the identity bound by the most recent Activate call.
func (s *Session) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Close transitions the session to Closed. Once closed a session can
// never be reactivated or transferred; CloseSession's DeleteSubscriptions
// flag is handled by the caller (internal/subscription owns that).
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
}

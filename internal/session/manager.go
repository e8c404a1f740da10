package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opcua-go/uacore/internal/eventloop"
	"github.com/opcua-go/uacore/internal/securechannel"
	"github.com/opcua-go/uacore/internal/ua"
)

// Manager owns every live Session in a registry keyed by an opaque id,
// guarded by a mutex, swept periodically for inactivity.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session // keyed by SessionID.String()
	byToken  map[string]*Session // keyed by AuthenticationToken.String()
	logger   zerolog.Logger
	maxCount int
}

// NewManager constructs an empty Manager and registers its periodic
// timeout sweep on loop, mirroring open62541's session manager
// housekeeping timer.
func NewManager(loop *eventloop.EventLoop, maxCount int, logger zerolog.Logger) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		byToken:  make(map[string]*Session),
		logger:   logger,
		maxCount: maxCount,
	}
	loop.AddPeriodicTimer(1*time.Second, m.sweepExpired)
	return m
}

// Create allocates a new Session bound to ch, returning BadTooManySessions
// equivalent via a plain error if the server is already at capacity.
func (m *Manager) Create(ch *securechannel.Channel, timeout time.Duration) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxCount > 0 && len(m.sessions) >= m.maxCount {
		return nil, ua.BadTooManySessions
	}
	sessionID := ua.NodeId{Namespace: 1, IDType: ua.IdTypeGuid, GuidID: uuid.New()}
	authToken := ua.NodeId{Namespace: 1, IDType: ua.IdTypeGuid, GuidID: uuid.New()}
	s := NewSession(sessionID, authToken, ch, timeout)
	m.sessions[sessionID.String()] = s
	m.byToken[authToken.String()] = s
	return s, nil
}

// Lookup finds a session by its SessionID.
func (m *Manager) Lookup(id ua.NodeId) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id.String()]
	return s, ok
}

// LookupByToken finds a session by the AuthenticationToken a request's
// RequestHeader carries, the lookup every service call after
// CreateSession actually uses on the wire.
func (m *Manager) LookupByToken(token ua.NodeId) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[token.String()]
	return s, ok
}

// Close closes and removes the session from the manager.
func (m *Manager) Close(id ua.NodeId) {
	m.mu.Lock()
	s, ok := m.sessions[id.String()]
	delete(m.sessions, id.String())
	if ok {
		delete(m.byToken, s.AuthenticationToken.String())
	}
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// sweepExpired closes and removes every session whose inactivity timeout
// has elapsed, run from the event loop's periodic timer rather than a
// dedicated goroutine: the whole engine lives on one loop.
func (m *Manager) sweepExpired() {
	now := time.Now()
	type expiredEntry struct {
		id string
		s  *Session
	}
	m.mu.Lock()
	var expired []expiredEntry
	for id, s := range m.sessions {
		if s.Expired(now) {
			expired = append(expired, expiredEntry{id: id, s: s})
		}
	}
	for _, e := range expired {
		delete(m.sessions, e.id)
		delete(m.byToken, e.s.AuthenticationToken.String())
	}
	m.mu.Unlock()

	for _, e := range expired {
		e.s.Close()
		m.logger.Info().Str("session_id", e.id).Msg("session: inactivity timeout, closing")
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Package audit provides structured, leveled audit logging for
// security-relevant events (channel open/close, session activation,
// identity rejection, subscription lifecycle) distinct from ordinary
// debug/operational logging: every audit event carries an Event name
// and optional Session scoping so downstream log aggregation can answer
// "what did session X do" without grepping free-form messages.
package audit

import (
	"time"

	"github.com/rs/zerolog"
)

// Level is the audit event severity, ordered the same way operational
// log levels are, but tracked independently so audit verbosity can be
// tuned without touching the rest of the logging configuration.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
	LevelCritical
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Event is one auditable occurrence: a SecureChannel opened, a Session
// activated with a rejected identity token, a Subscription expired.
type Event struct {
	Level     Level
	Timestamp time.Time
	Name      string
	SessionID string
	Message   string
	Metadata  map[string]interface{}
}

// Alerter is notified of WARNING-and-above events, e.g. to page on
// repeated identity rejections or channel exhaustion.
type Alerter interface {
	Alert(level Level, message string, metadata map[string]interface{})
}

// Logger writes Events to an underlying zerolog.Logger, filtering below
// MinLevel, and forwards WARNING+ events to an optional Alerter.
type Logger struct {
	base     zerolog.Logger
	minLevel Level
	alerter  Alerter
}

// New returns a Logger writing through base, logging only events at or
// above minLevel.
func New(base zerolog.Logger, minLevel Level) *Logger {
	return &Logger{base: base.With().Str("component", "audit").Logger(), minLevel: minLevel}
}

// SetAlerter installs alerter to receive WARNING/ERROR/CRITICAL events.
func (l *Logger) SetAlerter(alerter Alerter) { l.alerter = alerter }

// Log records event if its level meets MinLevel, and forwards it to the
// configured Alerter when at or above LevelWarning.
func (l *Logger) Log(event Event) {
	if event.Level < l.minLevel {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	zEvent := l.base.WithLevel(zerologLevel(event.Level)).
		Str("event", event.Name).
		Time("timestamp", event.Timestamp)
	if event.SessionID != "" {
		zEvent = zEvent.Str("session_id", event.SessionID)
	}
	for k, v := range event.Metadata {
		zEvent = zEvent.Interface(k, v)
	}
	zEvent.Msg(event.Message)

	if l.alerter != nil && event.Level >= LevelWarning {
		l.alerter.Alert(event.Level, event.Message, event.Metadata)
	}
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelCritical:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Info records an informational audit event.
func (l *Logger) Info(name, message string, metadata map[string]interface{}) {
	l.Log(Event{Level: LevelInfo, Name: name, Message: message, Metadata: metadata})
}

// Warning records a warning audit event.
func (l *Logger) Warning(name, message string, metadata map[string]interface{}) {
	l.Log(Event{Level: LevelWarning, Name: name, Message: message, Metadata: metadata})
}

// Error records an error-level audit event.
func (l *Logger) Error(name, message string, metadata map[string]interface{}) {
	l.Log(Event{Level: LevelError, Name: name, Message: message, Metadata: metadata})
}

// ForSession returns a SessionLogger that stamps every event with sessionID.
func (l *Logger) ForSession(sessionID string) *SessionLogger {
	return &SessionLogger{logger: l, sessionID: sessionID}
}

// SessionLogger scopes every emitted Event to one Session.
type SessionLogger struct {
	logger    *Logger
	sessionID string
}

func (s *SessionLogger) Info(name, message string, metadata map[string]interface{}) {
	s.logger.Log(Event{Level: LevelInfo, Name: name, SessionID: s.sessionID, Message: message, Metadata: metadata})
}

func (s *SessionLogger) Warning(name, message string, metadata map[string]interface{}) {
	s.logger.Log(Event{Level: LevelWarning, Name: name, SessionID: s.sessionID, Message: message, Metadata: metadata})
}

func (s *SessionLogger) Error(name, message string, metadata map[string]interface{}) {
	s.logger.Log(Event{Level: LevelError, Name: name, SessionID: s.sessionID, Message: message, Metadata: metadata})
}

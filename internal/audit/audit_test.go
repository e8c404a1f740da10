package audit

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type recordingAlerter struct {
	calls []string
}

func (r *recordingAlerter) Alert(level Level, message string, metadata map[string]interface{}) {
	r.calls = append(r.calls, message)
}

func TestLogFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf), LevelWarning)

	l.Info("SessionCreated", "session created", nil)
	assert.Empty(t, buf.String())

	l.Warning("ChannelExhausted", "no channel slots", nil)
	assert.Contains(t, buf.String(), "ChannelExhausted")
}

func TestAlerterCalledForWarningAndAbove(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf), LevelInfo)
	alerter := &recordingAlerter{}
	l.SetAlerter(alerter)

	l.Info("SessionCreated", "created", nil)
	l.Error("IdentityRejected", "bad password", nil)

	assert.Equal(t, []string{"bad password"}, alerter.calls)
}

func TestForSessionStampsSessionID(t *testing.T) {
	var buf bytes.Buffer
	l := New(zerolog.New(&buf), LevelInfo)
	sl := l.ForSession("sess-123")

	sl.Info("Activated", "session activated", nil)
	assert.Contains(t, buf.String(), "sess-123")
}

package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewDefaultsToInfoLevel(t *testing.T) {
	logger := New(Options{Level: "bogus"})
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	_ = logger
}

func TestRecoverPanicSwallowsPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	func() {
		defer RecoverPanic(logger, "test-goroutine", map[string]interface{}{"k": "v"})
		panic("boom")
	}()

	assert.Contains(t, buf.String(), "goroutine panic recovered")
	assert.Contains(t, buf.String(), "test-goroutine")
}

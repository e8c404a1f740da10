package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := &Config{
		TCPAddr:               ":4840",
		MaxSessions:           500,
		MaxConcurrentRequests: 100,
		PublishTickInterval:   100_000_000, // 100ms in time.Duration's int64 form
		LogLevel:              "info",
		LogFormat:             "json",
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNoListenAddr(t *testing.T) {
	cfg := &Config{MaxSessions: 1, MaxConcurrentRequests: 1, PublishTickInterval: 1, LogLevel: "info", LogFormat: "json"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := &Config{TCPAddr: ":4840", MaxSessions: 1, MaxConcurrentRequests: 1, PublishTickInterval: 1, LogLevel: "verbose", LogFormat: "json"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroTickInterval(t *testing.T) {
	cfg := &Config{TCPAddr: ":4840", MaxSessions: 1, MaxConcurrentRequests: 1, LogLevel: "info", LogFormat: "json"}
	assert.Error(t, cfg.Validate())
}

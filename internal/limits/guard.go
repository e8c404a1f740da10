// Package limits enforces static, operator-configured resource limits
// independent of the per-channel/per-connection send-side throttling
// internal/transport already does: a global rate cap on new
// SecureChannel opens, a concurrent-goroutine ceiling, and a CPU-based
// admission check for new channels.
package limits

import (
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/opcua-go/uacore/internal/platform"
)

// Config is the static resource budget for one server process.
type Config struct {
	MaxChannelOpensPerSec int
	MaxGoroutines         int
	CPURejectThreshold    float64 // reject new channels above this % of allocated CPU
	CPUPauseThreshold     float64 // pause PubSub consumption above this %
}

// GoroutineLimiter bounds concurrent goroutines using a semaphore
// channel, used to cap e.g. concurrent chunk-read pumps.
type GoroutineLimiter struct {
	sem chan struct{}
	max int
}

// NewGoroutineLimiter returns a limiter admitting at most max concurrent holders.
func NewGoroutineLimiter(max int) *GoroutineLimiter {
	return &GoroutineLimiter{sem: make(chan struct{}, max), max: max}
}

// Acquire attempts to reserve a slot, returning false if at capacity.
func (gl *GoroutineLimiter) Acquire() bool {
	select {
	case gl.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a previously-acquired slot.
func (gl *GoroutineLimiter) Release() { <-gl.sem }

// Current returns the number of slots currently held.
func (gl *GoroutineLimiter) Current() int { return len(gl.sem) }

// Max returns the limiter's capacity.
func (gl *GoroutineLimiter) Max() int { return gl.max }

// Guard enforces Config's static limits plus a CPU-based admission
// check for new channels, reusing platform.CPUMonitor for container-
// aware measurement.
type Guard struct {
	config           Config
	logger           zerolog.Logger
	channelOpens     *rate.Limiter
	goroutines       *GoroutineLimiter
	cpuMonitor       *platform.CPUMonitor
}

// NewGuard constructs a Guard from cfg, starting a CPU monitor via
// platform.NewCPUMonitor.
func NewGuard(cfg Config, logger zerolog.Logger) *Guard {
	g := &Guard{
		config:       cfg,
		logger:       logger,
		channelOpens: rate.NewLimiter(rate.Limit(cfg.MaxChannelOpensPerSec), cfg.MaxChannelOpensPerSec*2),
		goroutines:   NewGoroutineLimiter(cfg.MaxGoroutines),
		cpuMonitor:   platform.NewCPUMonitor(logger),
	}
	logger.Info().
		Str("cpu_mode", g.cpuMonitor.Mode()).
		Int("max_channel_opens_per_sec", cfg.MaxChannelOpensPerSec).
		Int("max_goroutines", cfg.MaxGoroutines).
		Float64("cpu_reject_threshold", cfg.CPURejectThreshold).
		Msg("resource guard initialized")
	return g
}

// AllowChannelOpen reports whether a new HEL/OPN exchange may proceed:
// both the static open-rate limiter and the live CPU reading must admit it.
func (g *Guard) AllowChannelOpen() (bool, error) {
	if !g.channelOpens.Allow() {
		return false, nil
	}
	pct, err := g.cpuMonitor.Percent()
	if err != nil {
		// measurement failure must not itself become an outage; admit and log.
		g.logger.Warn().Err(err).Msg("limits: cpu measurement failed, admitting channel open")
		return true, nil
	}
	if pct >= g.config.CPURejectThreshold {
		return false, fmt.Errorf("limits: cpu usage %.1f%% at or above reject threshold %.1f%%", pct, g.config.CPURejectThreshold)
	}
	return true, nil
}

// ShouldPausePubSub reports whether PubSub consumption should pause due
// to CPU pressure. No consume loop in this module checks it.
func (g *Guard) ShouldPausePubSub() bool {
	pct, err := g.cpuMonitor.Percent()
	if err != nil {
		return false
	}
	return pct >= g.config.CPUPauseThreshold
}

// Goroutines exposes the goroutine limiter for callers that need to
// gate their own background work (e.g. per-connection read pumps).
func (g *Guard) Goroutines() *GoroutineLimiter { return g.goroutines }

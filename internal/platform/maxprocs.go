package platform

import (
	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"
)

// SetMaxProcs adjusts GOMAXPROCS to match the container's CPU quota
// (rather than the host's full core count) and logs the outcome. Call
// once at process startup before starting the event loop.
func SetMaxProcs(logger zerolog.Logger) {
	_, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Info().Msgf(format, args...)
	}))
	if err != nil {
		logger.Warn().Err(err).Msg("platform: failed to set GOMAXPROCS from cgroup quota")
	}
}

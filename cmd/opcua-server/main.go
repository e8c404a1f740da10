// Command opcua-server runs a standalone OPC UA SecureChannel/Session/
// Subscription engine, listening on opc.tcp and opc.ws per its loaded
// configuration until it receives SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/opcua-go/uacore/internal/config"
	"github.com/opcua-go/uacore/internal/logging"
	"github.com/opcua-go/uacore/internal/platform"
	"github.com/opcua-go/uacore/internal/server"
)

func main() {
	var debug = flag.Bool("debug", false, "enable debug logging (overrides OPCUA_LOG_LEVEL)")
	flag.Parse()

	bootstrap := logging.New(logging.Options{Level: "info", Format: logging.FormatPretty, Service: "opcua-server"})

	cfg, err := config.Load(&bootstrap)
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *debug {
		cfg.LogLevel = "debug"
		bootstrap.Info().Msg("debug mode enabled via flag")
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: logging.Format(cfg.LogFormat), Service: "opcua-server"})
	platform.SetMaxProcs(logger)
	logger.Info().Int("gomaxprocs", runtime.GOMAXPROCS(0)).Msg("runtime configured")
	cfg.LogConfig(logger)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct server")
	}
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
}

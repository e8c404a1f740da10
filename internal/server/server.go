// Package server wires the SecureChannel/Session/Subscription/Dispatch
// engine together into a runnable opc.tcp/opc.ws listener: it owns the
// single EventLoop every stateful component is driven from, the
// per-connection accept and chunk-pump goroutines, and the ambient
// collaborators (metrics, audit, resource limits) each layer below is
// instrumented with: config in, NewServer/Start/Shutdown lifecycle, a
// context+cancel pair gating every background goroutine.
package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/opcua-go/uacore/internal/audit"
	"github.com/opcua-go/uacore/internal/config"
	"github.com/opcua-go/uacore/internal/dispatch"
	"github.com/opcua-go/uacore/internal/eventloop"
	"github.com/opcua-go/uacore/internal/limits"
	"github.com/opcua-go/uacore/internal/logging"
	"github.com/opcua-go/uacore/internal/metrics"
	"github.com/opcua-go/uacore/internal/nodestore"
	"github.com/opcua-go/uacore/internal/pubsubtransport"
	"github.com/opcua-go/uacore/internal/session"
	"github.com/opcua-go/uacore/internal/subscription"
	"github.com/opcua-go/uacore/internal/transport"
)

// Server is one running opc.tcp/opc.ws engine instance.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	loop       *eventloop.EventLoop
	sessions   *session.Manager
	identities *session.Validator
	dispatcher *dispatch.Dispatcher
	store      nodestore.NodeStore
	access     nodestore.AccessControl

	guard   *limits.Guard
	metrics *metrics.Registry
	audit   *audit.Logger

	metricsSrv *metrics.Server
	pubsub     pubsubtransport.Transport

	tcpListener transport.Listener
	wsListener  transport.Listener

	subsMu sync.Mutex
	subs   map[string]*subscription.Manager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Server from cfg, wiring every internal package's
// constructor with the options cfg carries. It does not start listening;
// call Start for that.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)
	auditLogger := audit.New(logger, audit.LevelInfo)

	loop := eventloop.New(logger)
	if err := loop.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("server: starting event loop: %w", err)
	}

	sessions := session.NewManager(loop, cfg.MaxSessions, logger)
	identities := session.NewValidator([]byte(cfg.JWTSecret))

	guardCfg := limits.Config{
		MaxChannelOpensPerSec: 50,
		MaxGoroutines:         cfg.MaxSessions * 2,
		CPURejectThreshold:    85,
		CPUPauseThreshold:     75,
	}
	guard := limits.NewGuard(guardCfg, logger)

	store := nodestore.NewStore()
	access := nodestore.RoleAccessControl{}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		loop:       loop,
		sessions:   sessions,
		identities: identities,
		dispatcher: dispatch.NewDispatcher(dispatch.Quotas{MaxConcurrentRequests: cfg.MaxConcurrentRequests, MaxPendingPublishes: cfg.MaxPendingPublishes}),
		store:      store,
		access:     access,
		guard:      guard,
		metrics:    m,
		audit:      auditLogger,
		metricsSrv: metrics.NewServer(cfg.MetricsAddr, promReg),
		subs:       make(map[string]*subscription.Manager),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.registerHandlers()

	if cfg.KafkaBrokers != "" {
		kt, err := pubsubtransport.NewKafkaTransport(pubsubtransport.KafkaConfig{
			Brokers:       splitBrokers(cfg.KafkaBrokers),
			ConsumerGroup: cfg.KafkaConsumerGroup,
			Logger:        logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("server: kafka transport unavailable, PubSub publishing disabled")
		} else {
			s.pubsub = kt
		}
	}

	return s, nil
}

// splitBrokers splits a comma-separated broker list, trimming blanks.
func splitBrokers(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// subsByID returns the subscription.Manager for sessionID, creating one
// on first use: each Session owns its own publishing-cycle tick on the
// shared event loop.
func (s *Server) subsByID(sessionID string) *subscription.Manager {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if mgr, ok := s.subs[sessionID]; ok {
		return mgr
	}
	mgr := subscription.NewManager(s.loop, s.cfg.PublishTickInterval, s.logger)
	mgr.Sender = func(msg subscription.NotificationMessage, subscriptionID uint32) {
		s.publishNotification(sessionID, subscriptionID, msg)
	}
	s.subs[sessionID] = mgr
	return mgr
}

func (s *Server) deleteSubsFor(sessionID string) {
	s.subsMu.Lock()
	delete(s.subs, sessionID)
	s.subsMu.Unlock()
}

// publishNotification handles a ready NotificationMessage: it counts it
// in the metrics and, when a PubSub transport is configured, republishes
// it as a NetworkMessage so external subscribers see the same data
// changes. It sends no PublishResponse; nothing is written to the
// session's SecureChannel here.
func (s *Server) publishNotification(sessionID string, subscriptionID uint32, msg subscription.NotificationMessage) {
	s.metrics.NotificationsPublished.Inc()
	if len(msg.DataChanges) == 0 {
		s.metrics.KeepAlivesSent.Inc()
	}
	if s.pubsub == nil {
		return
	}
	nm := notificationToNetworkMessage(sessionID, subscriptionID, msg)
	topic := fmt.Sprintf("opcua.subscription.%d", subscriptionID)
	if err := s.pubsub.Publish(s.ctx, topic, nm); err != nil {
		s.metrics.PubSubMessagesDropped.WithLabelValues("kafka", "publish_error").Inc()
		s.logger.Warn().Err(err).Str("topic", topic).Msg("server: pubsub publish failed")
		return
	}
	s.metrics.PubSubMessagesPublished.WithLabelValues("kafka").Inc()
}

// Start opens the configured opc.tcp/opc.ws listeners, begins driving the
// event loop, and starts the metrics endpoint and (if configured) the
// PubSub transport.
func (s *Server) Start() error {
	limits := transport.DefaultLimits()

	if s.cfg.TCPAddr != "" {
		ln, err := transport.ListenTCP(s.cfg.TCPAddr, limits)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		s.tcpListener = ln
		s.logger.Info().Str("addr", ln.Addr()).Msg("server: opc.tcp listening")
		s.acceptLoop(ln)
	}

	if s.cfg.WSAddr != "" {
		ln, err := transport.ListenWS(s.cfg.WSAddr, "/opcua", limits)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		s.wsListener = ln
		s.logger.Info().Str("addr", ln.Addr()).Msg("server: opc.ws listening")
		s.acceptLoop(ln)
	}

	if err := s.metricsSrv.Start(); err != nil {
		return fmt.Errorf("server: starting metrics endpoint: %w", err)
	}

	s.wg.Add(1)
	go s.driveLoop()

	s.audit.Info("ServerStarted", "opc.tcp/opc.ws engine started", map[string]interface{}{
		"tcp_addr": s.cfg.TCPAddr,
		"ws_addr":  s.cfg.WSAddr,
	})
	return nil
}

// driveLoop repeatedly calls the EventLoop's Run method until it reports
// the loop has stopped, the single goroutine every session/subscription
// mutation is serialized through.
func (s *Server) driveLoop() {
	defer s.wg.Done()
	defer logging.RecoverPanic(s.logger, "server.driveLoop", nil)
	for s.loop.Run(s.ctx, 200*time.Millisecond) {
	}
}

// acceptLoop spawns the goroutine that Accepts new Connections on ln and
// hands each one to handleConnection, gated by the resource guard's
// channel-open admission check.
func (s *Server) acceptLoop(ln transport.Listener) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer logging.RecoverPanic(s.logger, "server.acceptLoop", map[string]interface{}{"listener": ln.Addr()})
		for {
			conn, err := ln.Accept(s.ctx)
			if err != nil {
				if s.ctx.Err() != nil {
					return
				}
				s.logger.Warn().Err(err).Str("listener", ln.Addr()).Msg("server: accept error")
				continue
			}
			allow, err := s.guard.AllowChannelOpen()
			if err != nil || !allow {
				s.logger.Warn().Err(err).Str("remote", conn.RemoteAddr()).Msg("server: rejecting channel open, at capacity")
				conn.Close()
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleConnection(conn)
			}()
		}
	}()
}

// Shutdown stops accepting new connections, stops the event loop, and
// waits for every background goroutine to finish: cancel every listener
// and the context, then wait, without a connection drain grace period
// (this engine closes Sessions explicitly via CloseSession rather than
// severing raw broadcast sockets).
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("server: shutting down")

	if s.tcpListener != nil {
		s.tcpListener.Close()
	}
	if s.wsListener != nil {
		s.wsListener.Close()
	}
	if s.pubsub != nil {
		if err := s.pubsub.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("server: error closing pubsub transport")
		}
	}

	s.loop.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("server: shutdown deadline exceeded, some goroutines may still be running")
	}

	if err := s.metricsSrv.Stop(5 * time.Second); err != nil {
		s.logger.Warn().Err(err).Msg("server: error stopping metrics endpoint")
	}

	s.logger.Info().Msg("server: shutdown complete")
	return nil
}

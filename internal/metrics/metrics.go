// Package metrics exposes Prometheus counters/gauges/histograms for the
// channel/session/subscription/pubsub layers and a tiny HTTP server to
// serve them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric this module emits. It is constructed
// once at startup and passed by reference into securechannel/session/
// subscription/pubsubtransport call sites.
type Registry struct {
	ChannelsOpened prometheus.Counter
	ChannelsActive prometheus.Gauge
	ChannelsClosed *prometheus.CounterVec
	TokenRenewals  prometheus.Counter

	SessionsCreated prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionsExpired prometheus.Counter

	SubscriptionsActive      prometheus.Gauge
	NotificationsPublished   prometheus.Counter
	KeepAlivesSent           prometheus.Counter
	MonitoredItemQueueDrops  *prometheus.CounterVec
	PublishRequestQueueDepth prometheus.Gauge

	DispatchInFlight prometheus.Gauge
	DispatchRejected prometheus.Counter
	DispatchDuration *prometheus.HistogramVec

	PubSubMessagesPublished *prometheus.CounterVec
	PubSubMessagesDropped   *prometheus.CounterVec
}

// New constructs and registers every metric against reg.
func New(reg *prometheus.Registry) *Registry {
	m := &Registry{
		ChannelsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_channels_opened_total",
			Help: "Total number of SecureChannels opened.",
		}),
		ChannelsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcua_channels_active",
			Help: "Current number of open SecureChannels.",
		}),
		ChannelsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opcua_channels_closed_total",
			Help: "Total number of SecureChannels closed, by reason.",
		}, []string{"reason"}),
		TokenRenewals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_token_renewals_total",
			Help: "Total number of SecureChannel security token renewals.",
		}),

		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_sessions_created_total",
			Help: "Total number of Sessions created.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcua_sessions_active",
			Help: "Current number of active Sessions.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_sessions_expired_total",
			Help: "Total number of Sessions closed by inactivity sweep.",
		}),

		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcua_subscriptions_active",
			Help: "Current number of active Subscriptions.",
		}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_notifications_published_total",
			Help: "Total number of NotificationMessages published.",
		}),
		KeepAlivesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_keepalives_sent_total",
			Help: "Total number of keep-alive NotificationMessages sent.",
		}),
		MonitoredItemQueueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opcua_monitored_item_queue_drops_total",
			Help: "Total number of sample values dropped by MonitoredItem overflow policy.",
		}, []string{"policy"}),
		PublishRequestQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcua_publish_request_queue_depth",
			Help: "Current number of outstanding PublishRequests across all sessions.",
		}),

		DispatchInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opcua_dispatch_in_flight",
			Help: "Current number of in-flight service dispatches.",
		}),
		DispatchRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opcua_dispatch_rejected_total",
			Help: "Total number of dispatches rejected by quota.",
		}),
		DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opcua_dispatch_duration_seconds",
			Help:    "Service dispatch handler duration.",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}, []string{"service"}),

		PubSubMessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opcua_pubsub_messages_published_total",
			Help: "Total number of PubSub NetworkMessages published, by transport.",
		}, []string{"transport"}),
		PubSubMessagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opcua_pubsub_messages_dropped_total",
			Help: "Total number of PubSub NetworkMessages dropped, by transport and reason.",
		}, []string{"transport", "reason"}),
	}

	reg.MustRegister(
		m.ChannelsOpened, m.ChannelsActive, m.ChannelsClosed, m.TokenRenewals,
		m.SessionsCreated, m.SessionsActive, m.SessionsExpired,
		m.SubscriptionsActive, m.NotificationsPublished, m.KeepAlivesSent,
		m.MonitoredItemQueueDrops, m.PublishRequestQueueDepth,
		m.DispatchInFlight, m.DispatchRejected, m.DispatchDuration,
		m.PubSubMessagesPublished, m.PubSubMessagesDropped,
	)
	return m
}

// Server serves /metrics on addr from Start until Stop.
type Server struct {
	httpServer *http.Server
}

// NewServer wraps reg's registry behind a promhttp handler on addr.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &Server{httpServer: &http.Server{Addr: addr, Handler: mux}}
}

// Start runs the metrics HTTP server in the background.
func (s *Server) Start() error {
	ln := s.httpServer
	go func() {
		_ = ln.ListenAndServe()
	}()
	return nil
}

// Stop gracefully shuts the metrics server down within the given timeout.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

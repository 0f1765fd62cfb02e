// Package metrics exposes Prometheus instruments for the chat backend.
// All methods are safe on a nil *Metrics so callers can run without metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eten_chat"

// Metrics groups the instruments shared across packages.
type Metrics struct {
	gatherer prometheus.Gatherer

	messagesAppended     *prometheus.CounterVec
	messagesDeleted      prometheus.Counter
	messagesRead         prometheus.Counter
	conversationsDeleted *prometheus.CounterVec
	subscriptions        prometheus.Gauge
	connections          prometheus.Gauge
	disconnectHooks      prometheus.Counter
	adminOnline          prometheus.Gauge
	sessions             *prometheus.GaugeVec
	journalErrors        prometheus.Counter
}

// New registers instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		messagesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Chat messages appended, by author role.",
		}, []string{"role"}),
		messagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_deleted_total",
			Help:      "Delete-message requests applied.",
		}),
		messagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_marked_read_total",
			Help:      "Messages transitioned from unread to read.",
		}),
		conversationsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_deleted_total",
			Help:      "Conversations removed, by reason.",
		}, []string{"reason"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscriptions",
			Help:      "Active realtime path subscriptions.",
		}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open realtime connections.",
		}),
		disconnectHooks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnect_hooks_fired_total",
			Help:      "Disconnect-triggered writes executed.",
		}),
		adminOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "admin_online",
			Help:      "1 while the admin presence record is online.",
		}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chat_sessions",
			Help:      "Open chat sessions, by actor role.",
		}, []string{"role"}),
		journalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_errors_total",
			Help:      "Failed journal writes.",
		}),
	}

	reg.MustRegister(
		m.messagesAppended,
		m.messagesDeleted,
		m.messagesRead,
		m.conversationsDeleted,
		m.subscriptions,
		m.connections,
		m.disconnectHooks,
		m.adminOnline,
		m.sessions,
		m.journalErrors,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.gatherer
}

func (m *Metrics) MessageAppended(role string) {
	if m != nil {
		m.messagesAppended.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) MessageDeleted() {
	if m != nil {
		m.messagesDeleted.Inc()
	}
}

func (m *Metrics) MessageRead() {
	if m != nil {
		m.messagesRead.Inc()
	}
}

func (m *Metrics) ConversationDeleted(reason string) {
	if m != nil {
		m.conversationsDeleted.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SubscriptionsChanged(delta int) {
	if m != nil {
		m.subscriptions.Add(float64(delta))
	}
}

func (m *Metrics) ConnectionsChanged(delta int) {
	if m != nil {
		m.connections.Add(float64(delta))
	}
}

func (m *Metrics) DisconnectHookFired() {
	if m != nil {
		m.disconnectHooks.Inc()
	}
}

func (m *Metrics) SetAdminOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.adminOnline.Set(1)
		return
	}
	m.adminOnline.Set(0)
}

func (m *Metrics) SessionsChanged(role string, delta int) {
	if m != nil {
		m.sessions.WithLabelValues(role).Add(float64(delta))
	}
}

func (m *Metrics) JournalError() {
	if m != nil {
		m.journalErrors.Inc()
	}
}

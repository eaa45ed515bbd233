package hub

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors for the hub and the ingest
// pipeline feeding it.
type Metrics struct {
	registry     *prometheus.Registry
	sessions     prometheus.Gauge
	broadcasts   prometheus.Counter
	messagesSent prometheus.Counter
	sendFailures prometheus.Counter
	filteredDrop prometheus.Counter
	rateLimited  prometheus.Counter
	events       *prometheus.CounterVec
	giftRejects  prometheus.Counter
	autoReplies  prometheus.Counter
}

func newMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "barrage",
			Name:      "ws_sessions",
			Help:      "Current connected WebSocket subscribers",
		}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barrage",
			Name:      "broadcasts_total",
			Help:      "Packs accepted for broadcast",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barrage",
			Name:      "messages_sent_total",
			Help:      "Packs delivered to individual subscribers",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barrage",
			Name:      "send_failures_total",
			Help:      "Subscriber sends that failed and dropped the session",
		}),
		filteredDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barrage",
			Name:      "filtered_drops_total",
			Help:      "Packs dropped by the push type allow-list",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barrage",
			Name:      "rate_limited_total",
			Help:      "Connection attempts rejected by the per-IP rate limit",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barrage",
			Name:      "events_total",
			Help:      "Capture events received, by kind",
		}, []string{"kind"}),
		giftRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barrage",
			Name:      "gift_rejects_total",
			Help:      "Combo gift events rejected as duplicates",
		}),
		autoReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "barrage",
			Name:      "auto_replies_total",
			Help:      "Auto-reply packs emitted",
		}),
	}

	registry.MustRegister(
		m.sessions,
		m.broadcasts,
		m.messagesSent,
		m.sendFailures,
		m.filteredDrop,
		m.rateLimited,
		m.events,
		m.giftRejects,
		m.autoReplies,
	)
	return m
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) IncBroadcasts() {
	if m == nil {
		return
	}
	m.broadcasts.Inc()
}

func (m *Metrics) IncMessagesSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) IncSendFailures() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) IncFilteredDrops() {
	if m == nil {
		return
	}
	m.filteredDrop.Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// IncEvents counts one capture event of the given kind.
func (m *Metrics) IncEvents(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncGiftRejects() {
	if m == nil {
		return
	}
	m.giftRejects.Inc()
}

func (m *Metrics) IncAutoReplies() {
	if m == nil {
		return
	}
	m.autoReplies.Inc()
}

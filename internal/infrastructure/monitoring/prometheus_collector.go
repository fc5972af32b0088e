package monitoring

import (
	"peerlink/internal/core/domain"
	"peerlink/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ ports.RelayMetrics = (*PrometheusCollector)(nil)

type PrometheusCollector struct {
	connectionsOpen  prometheus.Gauge
	connectionsTotal prometheus.Counter
	usersRegistered  prometheus.Gauge

	messagesReceived  *prometheus.CounterVec
	messagesForwarded *prometheus.CounterVec
	messagesDropped   *prometheus.CounterVec

	broadcastsTotal     prometheus.Counter
	broadcastRecipients prometheus.Histogram
	broadcastFailures   prometheus.Counter
}

// NewPrometheusCollector registers the relay metrics with reg.
// Pass prometheus.DefaultRegisterer to expose them on promhttp.Handler().
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "peerlink_connections_open",
			Help: "Number of open signaling connections",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerlink_connections_total",
			Help: "Total number of accepted signaling connections",
		}),

		usersRegistered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "peerlink_users_registered",
			Help: "Number of usernames currently in the registry",
		}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerlink_messages_received_total",
			Help: "Inbound signaling messages by type",
		}, []string{"type"}),

		messagesForwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerlink_messages_forwarded_total",
			Help: "Signaling messages forwarded to a target by type",
		}, []string{"type"}),

		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peerlink_messages_dropped_total",
			Help: "Messages dropped by reason",
		}, []string{"reason"}),

		broadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerlink_presence_broadcasts_total",
			Help: "Total number of user list broadcasts",
		}),

		broadcastRecipients: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "peerlink_presence_broadcast_recipients",
			Help:    "Recipients per user list broadcast",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),

		broadcastFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "peerlink_presence_broadcast_failures_total",
			Help: "Per-recipient send failures during user list broadcasts",
		}),
	}
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsOpen.Inc()
	p.connectionsTotal.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {
	p.connectionsOpen.Dec()
}

func (p *PrometheusCollector) UsersRegistered(count int) {
	p.usersRegistered.Set(float64(count))
}

func (p *PrometheusCollector) MessageReceived(msgType domain.MessageType) {
	p.messagesReceived.WithLabelValues(typeLabel(msgType)).Inc()
}

func (p *PrometheusCollector) MessageForwarded(msgType domain.MessageType) {
	p.messagesForwarded.WithLabelValues(typeLabel(msgType)).Inc()
}

func (p *PrometheusCollector) MessageDropped(reason string) {
	p.messagesDropped.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) BroadcastSent(recipients, failed int) {
	p.broadcastsTotal.Inc()
	p.broadcastRecipients.Observe(float64(recipients))
	if failed > 0 {
		p.broadcastFailures.Add(float64(failed))
	}
}

// typeLabel keeps label cardinality bounded against arbitrary client input.
func typeLabel(t domain.MessageType) string {
	switch t {
	case domain.MessageLogin, domain.MessageOffer, domain.MessageAnswer, domain.MessageCandidate, domain.MessageUsers:
		return string(t)
	}
	return "unknown"
}

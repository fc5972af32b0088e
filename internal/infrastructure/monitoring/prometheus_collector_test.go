package monitoring

import (
	"testing"

	"peerlink/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheusCollector(reg)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsOpen))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsTotal))

	c.UsersRegistered(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.usersRegistered))

	c.MessageReceived(domain.MessageOffer)
	c.MessageReceived(domain.MessageType("bogus"))
	c.MessageReceived(domain.MessageType("also-bogus"))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesReceived.WithLabelValues("offer")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.messagesReceived.WithLabelValues("unknown")))

	c.MessageForwarded(domain.MessageCandidate)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesForwarded.WithLabelValues("candidate")))

	c.MessageDropped("target_not_found")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesDropped.WithLabelValues("target_not_found")))

	c.BroadcastSent(3, 1)
	c.BroadcastSent(2, 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.broadcastsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.broadcastFailures))
}

func TestPrometheusCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewPrometheusCollector(prometheus.NewRegistry())
		NewPrometheusCollector(prometheus.NewRegistry())
	})
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// ChannelMetrics exposes counters/histograms for channel message flows.
type ChannelMetrics struct {
	inboundTotal      *prometheus.CounterVec
	outboundTotal     *prometheus.CounterVec
	tokenRefreshTotal *prometheus.CounterVec
	jwkRefreshTotal   *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
}

func NewChannelMetrics(reg prometheus.Registerer) *ChannelMetrics {
	m := &ChannelMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miku",
			Subsystem: "channels",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound bot platform webhooks",
		}, []string{"activity_type", "status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miku",
			Subsystem: "channels",
			Name:      "outbound_total",
			Help:      "Total outbound message deliveries",
		}, []string{"status"}),
		tokenRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miku",
			Subsystem: "channels",
			Name:      "token_refresh_total",
			Help:      "Total OAuth2 token exchanges",
		}, []string{"status"}),
		jwkRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "miku",
			Subsystem: "channels",
			Name:      "jwk_refresh_total",
			Help:      "Total JWK set refreshes",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "miku",
			Subsystem: "channels",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of inbound webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"activity_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal, m.tokenRefreshTotal, m.jwkRefreshTotal, m.webhookLatency)
	return m
}

func (m *ChannelMetrics) ObserveInbound(activityType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(activityType, status).Inc()
}

func (m *ChannelMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}

func (m *ChannelMetrics) ObserveTokenRefresh(status string) {
	if m == nil {
		return
	}
	m.tokenRefreshTotal.WithLabelValues(status).Inc()
}

func (m *ChannelMetrics) ObserveJWKRefresh(status string) {
	if m == nil {
		return
	}
	m.jwkRefreshTotal.WithLabelValues(status).Inc()
}

func (m *ChannelMetrics) ObserveWebhookLatency(activityType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(activityType).Observe(seconds)
}

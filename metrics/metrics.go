package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "telegram_shop"

type Metrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	Orders        prometheus.Counter
	Notifications *prometheus.CounterVec
	BotUpdates    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. Pass a fresh prometheus.NewRegistry()
// in tests so collectors can be created more than once.
func New(reg *prometheus.Registry) *Metrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	orders := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_submitted_total",
		Help:      "Orders accepted by the storefront.",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Order notifications by outcome.",
	}, []string{"result"})
	updates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bot_updates_total",
		Help:      "Webhook updates by kind.",
	}, []string{"kind"})

	reg.MustRegister(requests, latency, orders, notifications, updates)
	return &Metrics{
		Requests:      requests,
		LatencyMS:     latency,
		Orders:        orders,
		Notifications: notifications,
		BotUpdates:    updates,
		gatherer:      reg,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

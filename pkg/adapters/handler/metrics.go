package handler

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
)

// Metrics holds the HTTP and resolution collectors.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	resolves *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shortlink",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortlink",
			Name:      "resolves_total",
			Help:      "Short code resolutions by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.requests, m.duration, m.resolves)
	return m
}

// instrument wraps next with the request counter and latency histogram for route.
func (m *Metrics) instrument(route string, next http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	return promhttp.InstrumentHandlerCounter(m.requests.MustCurryWith(labels),
		promhttp.InstrumentHandlerDuration(m.duration.MustCurryWith(labels), next))
}

func (m *Metrics) observeResolve(err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrExpired):
		outcome = "expired"
	case errors.Is(err, domain.ErrNotFoundOrInactive):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	m.resolves.WithLabelValues(outcome).Inc()
}

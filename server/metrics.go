package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wippyai/engine-bridge/errors"
	"github.com/wippyai/engine-bridge/loader"
)

// Metrics holds the service's Prometheus collectors in a private registry.
type Metrics struct {
	registry *prometheus.Registry

	invocations      *prometheus.CounterVec
	invokeLatency    *prometheus.HistogramVec
	queueWait        prometheus.Histogram
	bootstrapEvents  *prometheus.CounterVec
	bootstrapLatency prometheus.Histogram
	engineState      prometheus.Gauge
	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
}

// NewMetrics creates collectors under namespace, "enginebridge" when empty.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "enginebridge"
	}
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "invocations_total",
			Help:      "Engine invocations by operation and outcome (ok or error kind)",
		},
		[]string{"op", "outcome"},
	)
	m.invokeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "invocation_duration_seconds",
			Help:      "Time spent inside engine calls",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"op"},
	)
	m.queueWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "queue_wait_seconds",
		Help:      "Time requests wait for their turn on the engine",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	m.bootstrapEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "events_total",
			Help:      "Loader lifecycle events by type",
		},
		[]string{"event"},
	)
	m.bootstrapLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "bootstrap_duration_seconds",
		Help:      "Duration of bootstrap attempts",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})
	m.engineState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "loader",
		Name:      "state",
		Help:      "Loader state (0=uninitialized, 1=initializing, 2=ready, 3=failed, 4=disposed)",
	})
	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	m.httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests being served",
	})

	m.registry.MustRegister(
		m.invocations,
		m.invokeLatency,
		m.queueWait,
		m.bootstrapEvents,
		m.bootstrapLatency,
		m.engineState,
		m.httpRequests,
		m.httpLatency,
		m.httpInFlight,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observer returns a loader observer that records lifecycle events.
func (m *Metrics) Observer() loader.Observer {
	return func(ev loader.Event) {
		m.bootstrapEvents.WithLabelValues(ev.Type.String()).Inc()
		switch ev.Type {
		case loader.EventStart:
			m.engineState.Set(float64(loader.Initializing))
		case loader.EventReady:
			m.engineState.Set(float64(loader.Ready))
			m.bootstrapLatency.Observe(ev.Duration.Seconds())
		case loader.EventFailed:
			m.engineState.Set(float64(loader.Failed))
			m.bootstrapLatency.Observe(ev.Duration.Seconds())
		case loader.EventDisposed:
			m.engineState.Set(float64(loader.Disposed))
		}
	}
}

// UnsupportedOpLabel is the op label shared by calls to names the engine does
// not export, so client-chosen names never become label values.
const UnsupportedOpLabel = "unsupported"

// RecordInvocation records one engine call. op must be an exported name or
// UnsupportedOpLabel.
func (m *Metrics) RecordInvocation(op string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if e, ok := errors.As(err); ok {
			outcome = string(e.Kind)
		}
	}
	m.invocations.WithLabelValues(op, outcome).Inc()
	m.invokeLatency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordQueueWait records how long a request waited for the engine.
func (m *Metrics) RecordQueueWait(d time.Duration) {
	m.queueWait.Observe(d.Seconds())
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	legalRequestsTotal     *prometheus.CounterVec
	legalActRequestsTotal  *prometheus.CounterVec
	legalNoContextTotal    *prometheus.CounterVec
	legalFusedDocuments    *prometheus.HistogramVec
	legalStrategyDocuments *prometheus.HistogramVec
	legalFailuresTotal     *prometheus.CounterVec
	legalDuration          *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legal",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "legal",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	legalRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total successful retrieval and answer requests.",
		},
		[]string{"service", "endpoint"},
	)
	legalActRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "retrieval",
			Name:      "act_requests_total",
			Help:      "Total successful requests by resolved act.",
		},
		[]string{"service", "endpoint", "act"},
	)
	legalNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total requests whose fusion round returned no provisions.",
		},
		[]string{"service", "endpoint"},
	)
	legalFusedDocuments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legal",
			Subsystem: "retrieval",
			Name:      "fused_documents",
			Help:      "Distribution of fused provisions per request.",
			Buckets:   []float64{0, 1, 2, 4, 8, 13, 21, 34, 55},
		},
		[]string{"service", "endpoint"},
	)
	legalStrategyDocuments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legal",
			Subsystem: "retrieval",
			Name:      "strategy_documents",
			Help:      "Distribution of candidates returned per strategy.",
			Buckets:   []float64{0, 1, 2, 4, 6, 10, 18, 30},
		},
		[]string{"service", "strategy"},
	)
	legalFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "retrieval",
			Name:      "failures_total",
			Help:      "Total failed retrieval and answer requests by error kind.",
		},
		[]string{"service", "endpoint", "kind"},
	)
	legalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legal",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval and answer duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		legalRequestsTotal,
		legalActRequestsTotal,
		legalNoContextTotal,
		legalFusedDocuments,
		legalStrategyDocuments,
		legalFailuresTotal,
		legalDuration,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		legalRequestsTotal:     legalRequestsTotal,
		legalActRequestsTotal:  legalActRequestsTotal,
		legalNoContextTotal:    legalNoContextTotal,
		legalFusedDocuments:    legalFusedDocuments,
		legalStrategyDocuments: legalStrategyDocuments,
		legalFailuresTotal:     legalFailuresTotal,
		legalDuration:          legalDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/corpus/runs/"):
		return "/v1/corpus/runs/{id}"
	case strings.HasPrefix(path, "/v1/corpus/"):
		return "/v1/corpus/{act}"
	default:
		return path
	}
}

// RecordRetrieval records one successful fusion round.
func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint, act string, fused int, strategyCounts map[string]int, duration time.Duration) {
	if act == "" {
		act = "All"
	}
	m.legalRequestsTotal.WithLabelValues(service, endpoint).Inc()
	m.legalActRequestsTotal.WithLabelValues(service, endpoint, act).Inc()
	m.legalFusedDocuments.WithLabelValues(service, endpoint).Observe(float64(fused))
	m.legalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	for strategy, n := range strategyCounts {
		m.legalStrategyDocuments.WithLabelValues(service, strategy).Observe(float64(n))
	}
	if fused == 0 {
		m.legalNoContextTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordRetrievalFailure(service, endpoint, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.legalFailuresTotal.WithLabelValues(service, endpoint, kind).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}

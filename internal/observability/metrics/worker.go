package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	runTotal    *prometheus.CounterVec
	runDuration *prometheus.HistogramVec
	runInFlight prometheus.Gauge
	docsIndexed *prometheus.CounterVec
	queueLag    *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "ingest_runs_total",
			Help:      "Total processed ingest runs by status.",
		},
		[]string{"service", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "ingest_run_duration_seconds",
			Help:      "Ingest run duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "status"},
	)
	runInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "ingest_runs_in_flight",
			Help:      "Number of in-flight ingest runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	docsIndexed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "documents_indexed_total",
			Help:      "Total provision documents written to the index.",
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "legal",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(runTotal, runDuration, runInFlight, docsIndexed, queueLag)

	return &WorkerMetrics{
		registry:    registry,
		runTotal:    runTotal,
		runDuration: runDuration,
		runInFlight: runInFlight,
		docsIndexed: docsIndexed,
		queueLag:    queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartRun() {
	m.runInFlight.Inc()
}

func (m *WorkerMetrics) FinishRun(service string, duration time.Duration, indexed int, err error) {
	m.runInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.runTotal.WithLabelValues(service, status).Inc()
	m.runDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if indexed > 0 {
		m.docsIndexed.WithLabelValues(service).Add(float64(indexed))
	}
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}

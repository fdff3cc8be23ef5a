package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slh_ledger",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slh_ledger",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "slh_ledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slh_ledger",
			Subsystem: "core",
			Name:      "operations_total",
			Help:      "Ledger operations by kind and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	tokensMinted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slh_ledger",
			Subsystem: "issuance",
			Name:      "tokens_minted_total",
			Help:      "Units issued by mints and admin credits.",
		},
	)

	journalDrift = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "slh_ledger",
			Subsystem: "reconcile",
			Name:      "drifted_wallets",
			Help:      "Wallets whose balance disagreed with the journal on the last run.",
		},
	)

	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slh_ledger",
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Total number of reconcile runs.",
		},
		[]string{"success"},
	)

	reconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "slh_ledger",
			Subsystem: "reconcile",
			Name:      "run_duration_seconds",
			Help:      "Duration of reconcile runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		operations,
		tokensMinted,
		journalDrift,
		reconcileRuns,
		reconcileDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency labelled by route pattern.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordOperation counts one core operation with its outcome label.
func RecordOperation(operation, outcome string) {
	operations.WithLabelValues(operation, outcome).Inc()
}

// RecordMinted adds issued units to the minted counter.
func RecordMinted(amount float64) {
	if amount > 0 {
		tokensMinted.Add(amount)
	}
}

// RecordReconcile records one reconcile run.
func RecordReconcile(drifted int, success bool, duration time.Duration) {
	if success {
		journalDrift.Set(float64(drifted))
	}
	reconcileRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
	reconcileDuration.Observe(duration.Seconds())
}

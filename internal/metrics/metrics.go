// Package metrics exposes Prometheus metrics for recurring scans.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

const namespace = "modwatch"

// Collector records the outcome of scans and issue filing.
type Collector struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	changesTotal  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	issuesTotal   *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
	recordsLatest prometheus.Gauge
}

// NewCollector creates a collector registered on registry. A nil registry creates a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "runs_total",
			Help:      "Total number of scans by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Wall time of scans.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		changesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "changes_total",
			Help:      "Change records reported, by kind and tracked directory.",
		}, []string{"kind", "category"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "errors_total",
			Help:      "Failed scans and filings by error kind.",
		}, []string{"kind"}),
		issuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "issues_total",
			Help:      "Filing outcomes per record: created or existing.",
		}, []string{"outcome"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful scan.",
		}),
		recordsLatest: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "records",
			Help:      "Number of records in the last successful report.",
		}),
	}

	registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.changesTotal,
		c.errorsTotal,
		c.issuesTotal,
		c.lastSuccess,
		c.recordsLatest,
	)
	return c
}

// ObserveRun records a finished scan. report is ignored when err is set.
func (c *Collector) ObserveRun(report *schema.Report, duration time.Duration, err error) {
	c.runDuration.Observe(duration.Seconds())
	if err != nil {
		c.runsTotal.WithLabelValues(string(schema.RunFailed)).Inc()
		c.errorsTotal.WithLabelValues(errorLabel(err)).Inc()
		return
	}
	c.runsTotal.WithLabelValues(string(schema.RunSucceeded)).Inc()
	c.lastSuccess.Set(float64(report.GeneratedAt.Unix()))
	c.recordsLatest.Set(float64(len(report.Records)))
	for _, rec := range report.Records {
		c.changesTotal.WithLabelValues(string(rec.Kind), rec.Category).Inc()
	}
}

// ObserveFiling records the outcome of issue filing.
func (c *Collector) ObserveFiling(results []schema.FilingResult, err error) {
	for _, res := range results {
		if res.Created {
			c.issuesTotal.WithLabelValues("created").Inc()
		} else {
			c.issuesTotal.WithLabelValues("existing").Inc()
		}
	}
	if err != nil {
		c.errorsTotal.WithLabelValues(errorLabel(err)).Inc()
	}
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func errorLabel(err error) string {
	if kind := contract.ErrorKindOf(err); kind != "" {
		return string(kind)
	}
	return "other"
}

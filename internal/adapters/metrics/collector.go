// Package metrics exposes validation outcomes as Prometheus metrics.
//
// Metrics:
//   - tabcheck_validation_runs_total: runs by schema, status and decision
//   - tabcheck_validation_rows_total: rows by schema and classification
//   - tabcheck_validation_violations_total: violations by schema, severity and rule
//   - tabcheck_validation_run_duration_seconds: scan duration by schema
//   - tabcheck_validation_superseded_total: runs discarded for a newer run
//   - tabcheck_outbox_dispatch_total: outbox deliveries by outcome
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/ports"
)

const (
	defaultNamespace = "tabcheck"

	rowsValid        = "valid"
	rowsWithErrors   = "with_errors"
	rowsWithWarnings = "with_warnings"
)

// Collector owns a registry and implements ports.ValidationObserver.
type Collector struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	rowsTotal       *prometheus.CounterVec
	violationsTotal *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	supersededTotal *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
}

var _ ports.ValidationObserver = (*Collector)(nil)

// NewCollector registers every metric on registry, or on a fresh registry
// with the Go and process collectors when registry is nil.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "runs_total",
				Help:      "Completed validation runs",
			},
			[]string{"schema", "status", "decision"},
		),
		rowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "rows_total",
				Help:      "Validated rows by classification",
			},
			[]string{"schema", "class"},
		),
		violationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "violations_total",
				Help:      "Reported violations by severity and rule",
			},
			[]string{"schema", "severity", "rule"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "run_duration_seconds",
				Help:      "Time spent scanning a dataset",
				// 100µs to ~6.5s
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 9),
			},
			[]string{"schema"},
		),
		supersededTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "validation",
				Name:      "superseded_total",
				Help:      "Runs discarded because a newer run for the same session began",
			},
			[]string{"schema"},
		),
		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "outbox",
				Name:      "dispatch_total",
				Help:      "Outbox delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		c.runsTotal,
		c.rowsTotal,
		c.violationsTotal,
		c.runDuration,
		c.supersededTotal,
		c.dispatchTotal,
	)
	return c
}

func (c *Collector) ObserveRun(run domain.ValidationRun, report domain.Report) {
	schema := run.SchemaName
	c.runsTotal.WithLabelValues(schema, string(run.Status), string(run.Decision)).Inc()
	c.rowsTotal.WithLabelValues(schema, rowsValid).Add(float64(report.Summary.Valid))
	c.rowsTotal.WithLabelValues(schema, rowsWithErrors).Add(float64(report.Summary.WithErrors))
	c.rowsTotal.WithLabelValues(schema, rowsWithWarnings).Add(float64(report.Summary.WithWarnings))

	for _, bucket := range [][]domain.Violation{report.Errors, report.Warnings, report.Info} {
		for _, v := range bucket {
			c.violationsTotal.WithLabelValues(schema, string(v.Severity), string(v.Rule)).Inc()
		}
	}
	c.runDuration.WithLabelValues(schema).Observe(run.Duration().Seconds())
}

func (c *Collector) ObserveSuperseded(_ string, schemaName string) {
	c.supersededTotal.WithLabelValues(schemaName).Inc()
}

func (c *Collector) ObserveDispatch(outcome string) {
	c.dispatchTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

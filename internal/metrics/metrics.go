package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for unit imports.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	ImportsTotal    *prometheus.CounterVec
	RowsTotal       *prometheus.CounterVec
	ViolationsTotal *prometheus.CounterVec
	ImportDuration  prometheus.Histogram
	ImportsActive   prometheus.Gauge
}

// New creates the import metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ImportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condoreg_imports_total",
			Help: "Finished imports by final status",
		}, []string{"status"}),
		RowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condoreg_import_rows_total",
			Help: "Imported rows by outcome (accepted, rejected)",
		}, []string{"outcome"}),
		ViolationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "condoreg_import_violations_total",
			Help: "Row violations and failures by error kind",
		}, []string{"kind"}),
		ImportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "condoreg_import_duration_seconds",
			Help:    "Wall time of an import from upload to report",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ImportsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "condoreg_imports_active",
			Help: "Imports currently holding a limiter slot",
		}),
	}
}

// ImportStarted marks an import as running.
func (m *Metrics) ImportStarted() {
	if m == nil {
		return
	}
	m.ImportsActive.Inc()
}

// ImportFinished records the outcome of an import.
// Call with time.Now() at the start of the import.
func (m *Metrics) ImportFinished(status string, accepted, rejected int, start time.Time) {
	if m == nil {
		return
	}
	m.ImportsActive.Dec()
	m.ImportsTotal.WithLabelValues(status).Inc()
	m.RowsTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.RowsTotal.WithLabelValues("rejected").Add(float64(rejected))
	m.ImportDuration.Observe(time.Since(start).Seconds())
}

// ObserveViolation counts one violation or failure of the given kind.
func (m *Metrics) ObserveViolation(kind string) {
	if m == nil {
		return
	}
	m.ViolationsTotal.WithLabelValues(kind).Inc()
}

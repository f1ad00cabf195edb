// Package metrics counts what a reconciliation run did and dumps the counts
// in the Prometheus text format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tollcheck/tollcheck/internal/model"
)

// File status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run holds the counters of one run on its own registry.
type Run struct {
	Registry *prometheus.Registry

	FilesProcessed *prometheus.CounterVec
	Records        prometheus.Counter
	FreePasses     prometheus.Counter
	Overcharges    prometheus.Counter
	ManualReviews  prometheus.Counter
	ChargedTotal   prometheus.Counter
	FileDuration   prometheus.Histogram
}

// NewRun registers a fresh set of counters.
func NewRun() *Run {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Run{
		Registry: reg,
		FilesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tollcheck_files_processed_total",
			Help: "Billing exports processed, labelled by status.",
		}, []string{"status"}),
		Records: f.NewCounter(prometheus.CounterOpts{
			Name: "tollcheck_records_total",
			Help: "Passage records reconciled.",
		}),
		FreePasses: f.NewCounter(prometheus.CounterOpts{
			Name: "tollcheck_free_passes_total",
			Help: "Passages after a long gap that were not charged.",
		}),
		Overcharges: f.NewCounter(prometheus.CounterOpts{
			Name: "tollcheck_overcharges_total",
			Help: "Passages charged within an hour of the previous one.",
		}),
		ManualReviews: f.NewCounter(prometheus.CounterOpts{
			Name: "tollcheck_manual_reviews_total",
			Help: "Files whose first passage is before 01:00.",
		}),
		ChargedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tollcheck_charged_amount_total",
			Help: "Sum of charged amounts.",
		}),
		FileDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tollcheck_file_duration_seconds",
			Help:    "Time spent reading and reconciling one file.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// ObserveDataset records a successfully reconciled file.
func (r *Run) ObserveDataset(ds *model.Dataset, took time.Duration) {
	r.FilesProcessed.WithLabelValues(StatusOK).Inc()
	r.FileDuration.Observe(took.Seconds())
	r.Records.Add(float64(ds.Len()))
	if ds.NeedsManualReview {
		r.ManualReviews.Inc()
	}
	for _, rec := range ds.Records {
		if rec.FreePass {
			r.FreePasses.Inc()
		}
		if rec.Overcharge {
			r.Overcharges.Inc()
		}
		if rec.Charged {
			r.ChargedTotal.Add(rec.Amount.InexactFloat64())
		}
	}
}

// FileFailed records a file that could not be reconciled.
func (r *Run) FileFailed(took time.Duration) {
	r.FilesProcessed.WithLabelValues(StatusFailed).Inc()
	r.FileDuration.Observe(took.Seconds())
}

// WriteTextfile writes every metric to path for the node exporter
// textfile collector.
func (r *Run) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

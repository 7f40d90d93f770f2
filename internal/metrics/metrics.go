// Package metrics holds the per-run Prometheus counters for a report run.
// A run is a short-lived batch job, so the registry is written to a
// node_exporter textfile instead of being scraped.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run groups the collectors for a single pipeline run. A nil *Run is valid
// and records nothing.
type Run struct {
	Registry *prometheus.Registry

	PagesFetched    prometheus.Counter
	RecordsFetched  prometheus.Counter
	RecordsKept     prometheus.Counter
	HTTPRetries     *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	SafetyCap       prometheus.Gauge
}

func NewRun() *Run {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Run{
		Registry: reg,
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "awardfinder_pages_fetched_total",
			Help: "Search result pages fetched",
		}),
		RecordsFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "awardfinder_records_fetched_total",
			Help: "Award records pulled before filtering",
		}),
		RecordsKept: factory.NewCounter(prometheus.CounterOpts{
			Name: "awardfinder_records_kept_total",
			Help: "Award records written to the report",
		}),
		HTTPRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "awardfinder_http_retries_total",
			Help: "Retried HTTP attempts by reason",
		}, []string{"reason"}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "awardfinder_http_request_duration_seconds",
			Help:    "Duration of individual HTTP attempts",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		SafetyCap: factory.NewGauge(prometheus.GaugeOpts{
			Name: "awardfinder_safety_cap_reached",
			Help: "1 when the page ceiling stopped the run before the last page",
		}),
	}
}

func (r *Run) ObservePage(records int) {
	if r == nil {
		return
	}
	r.PagesFetched.Inc()
	r.RecordsFetched.Add(float64(records))
}

func (r *Run) ObserveRetry(reason string) {
	if r == nil {
		return
	}
	r.HTTPRetries.WithLabelValues(reason).Inc()
}

func (r *Run) ObserveRequest(d time.Duration) {
	if r == nil {
		return
	}
	r.RequestDuration.Observe(d.Seconds())
}

func (r *Run) ObserveKept(n int) {
	if r == nil {
		return
	}
	r.RecordsKept.Add(float64(n))
}

func (r *Run) MarkSafetyCap() {
	if r == nil {
		return
	}
	r.SafetyCap.Set(1)
}

// WriteTextfile writes the registry in Prometheus text format.
func (r *Run) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

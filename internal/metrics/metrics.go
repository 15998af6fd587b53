// Package metrics exposes run results as Prometheus metrics written to a
// node-exporter textfile; a batch job has no endpoint to scrape.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"LimitUpWatch/internal/model"
)

// Recorder holds the metrics of one process on a private registry.
type Recorder struct {
	reg            *prometheus.Registry
	limitUps       prometheus.Gauge
	hits           prometheus.Gauge
	sourceFailures *prometheus.CounterVec
	stockOutcomes  *prometheus.CounterVec
	duration       prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

// New creates a metrics recorder.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		limitUps: f.NewGauge(prometheus.GaugeOpts{
			Name: "limitupwatch_limitup_stocks",
			Help: "Limit-up stocks found in the last run",
		}),
		hits: f.NewGauge(prometheus.GaugeOpts{
			Name: "limitupwatch_broker_hits",
			Help: "Limit-up stocks whose top buyer is on the watchlist in the last run",
		}),
		sourceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "limitupwatch_source_failures_total",
			Help: "Limit-up listing fetches that were skipped",
		}, []string{"market"}),
		stockOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "limitupwatch_stock_outcomes_total",
			Help: "Broker lookups by outcome",
		}, []string{"status"}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "limitupwatch_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "limitupwatch_last_success_timestamp_seconds",
			Help: "Unix time the last run finished and sent its email",
		}),
	}
}

// Observe records a finished run.
func (r *Recorder) Observe(s *model.RunSummary) {
	r.limitUps.Set(float64(len(s.LimitUps)))
	r.hits.Set(float64(len(s.Hits)))
	for _, src := range s.Sources {
		if src.Status == model.SourceSkipped {
			r.sourceFailures.WithLabelValues(string(src.Market)).Inc()
		}
	}
	for _, o := range s.Stocks {
		r.stockOutcomes.WithLabelValues(string(o.Status)).Inc()
	}
	if !s.FinishedAt.IsZero() {
		r.duration.Set(s.FinishedAt.Sub(s.StartedAt).Seconds())
		if s.Emailed {
			r.lastSuccess.Set(float64(s.FinishedAt.Unix()))
		}
	}
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Registry struct {
	reg                  *prometheus.Registry
	Runs                 *prometheus.CounterVec
	ElementsFetched      prometheus.Counter
	PromotionsStored     prometheus.Counter
	PromotionsSkipped    prometheus.Counter
	NotificationFailures prometheus.Counter
	RunDurationSec       prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "freegames_runs_total",
		Help: "Pipeline runs by outcome.",
	}, []string{"outcome"})
	elements := prometheus.NewCounter(prometheus.CounterOpts{Name: "freegames_catalog_elements_total"})
	stored := prometheus.NewCounter(prometheus.CounterOpts{Name: "freegames_promotions_stored_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "freegames_promotions_skipped_total"})
	notifyFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "freegames_notification_failures_total"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "freegames_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(runs, elements, stored, skipped, notifyFailed, duration)
	return &Registry{
		reg:                  r,
		Runs:                 runs,
		ElementsFetched:      elements,
		PromotionsStored:     stored,
		PromotionsSkipped:    skipped,
		NotificationFailures: notifyFailed,
		RunDurationSec:       duration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

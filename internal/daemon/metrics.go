package daemon

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// registerSelfMetrics exposes the daemon's own operational counters on reg:
// triggers routed, events dropped by a closed recorder, and export batches
// that exhausted retries. This is a narrow operator-facing surface, not the
// analysis pipeline spec.md names as a Non-goal.
func (c *Controller) registerSelfMetrics(reg *prometheus.Registry) {
	factory := promauto.With(reg)

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "tracerd_triggers_processed_total",
		Help: "Number of kernel triggers routed through the Trigger Router.",
	}, func() float64 { return float64(c.router.Processed()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "tracerd_events_dropped_total",
		Help: "Number of telemetry events dropped because the recorder channel was closed.",
	}, func() float64 { return float64(c.recorder.Dropped()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "tracerd_export_batch_failures_total",
		Help: "Number of event batches that exhausted retries and were dropped.",
	}, func() float64 { return float64(c.exporter.Failures()) })
}

package checker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects check outcomes in a private registry so a CLI run can dump them as a
// node-exporter textfile. A nil *Metrics records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	cases        *prometheus.CounterVec
	caseDuration *prometheus.HistogramVec
	passRatio    *prometheus.GaugeVec
}

// NewMetrics registers the checker collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		cases: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "providercheck_cases_total",
			Help: "Conformance cases executed grouped by provider and outcome",
		}, []string{"provider", "outcome"}),
		caseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "providercheck_case_duration_seconds",
			Help:    "Wall time of a single provider invocation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		passRatio: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "providercheck_last_run_pass_ratio",
			Help: "Fraction of cases that passed in the most recent run of a provider",
		}, []string{"provider"}),
	}
}

// ObserveCase records one case outcome.
func (m *Metrics) ObserveCase(provider string, passed bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "failed"
	if passed {
		outcome = "passed"
	}
	m.cases.WithLabelValues(provider, outcome).Inc()
	m.caseDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveRun records the pass ratio of a finished run.
func (m *Metrics) ObserveRun(provider string, passed, total int) {
	if m == nil || total == 0 {
		return
	}
	m.passRatio.WithLabelValues(provider).Set(float64(passed) / float64(total))
}

// WriteTextfile writes all collected metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

package harness

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.firedancer.io/harness/pkg/sealevel"
)

const metricNamespace = "harness"

type metrics struct {
	instructions    *prometheus.CounterVec
	computeUnits    prometheus.Histogram
	absorbed        prometheus.Counter
	programsUpdated prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "instructions_total",
			Help:      "Top-level instructions executed, by outcome",
		}, []string{"result"}),
		computeUnits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricNamespace,
			Name:      "instruction_compute_units",
			Help:      "Compute units consumed per top-level instruction",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
		}),
		absorbed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "context_accounts_absorbed_total",
			Help:      "Accounts written back to a context store",
		}),
		programsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricNamespace,
			Name:      "context_programs_updated_total",
			Help:      "Upgradeable programs re-registered from their programdata account",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.instructions, m.computeUnits, m.absorbed, m.programsUpdated)
	}
	return m
}

func (m *metrics) observe(out sealevel.ExecuteOutput) {
	result := "success"
	if out.Err != nil {
		result = "failure"
	}
	m.instructions.WithLabelValues(result).Inc()
	m.computeUnits.Observe(float64(out.ComputeUnits))
}

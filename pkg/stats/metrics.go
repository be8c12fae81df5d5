package stats

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics are the Prometheus series gradfuzz produces about its own run —
// the teacher's pkg/monitoring/prometheus client only ever *queries*
// Prometheus; here the fuzzer is the producer, so the same library serves
// the opposite role it does in the teacher (SPEC_FULL.md §2).
type Metrics struct {
	Registry *prometheus.Registry

	ExecsTotal      prometheus.Counter
	CrashesTotal    prometheus.Counter
	TimeoutsTotal   prometheus.Counter
	UniqueEdges     prometheus.Gauge
	QueueDepth      prometheus.Gauge
	CoverageDensity prometheus.Gauge
	ConditionsSolved prometheus.Counter
}

// NewMetrics registers a fresh metric set on its own registry, so multiple
// workers or test runs never collide on Prometheus's default registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ExecsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradfuzz_execs_total",
			Help: "Total number of target executions.",
		}),
		CrashesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradfuzz_crashes_total",
			Help: "Total number of unique crashes found.",
		}),
		TimeoutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradfuzz_timeouts_total",
			Help: "Total number of timed-out executions.",
		}),
		UniqueEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gradfuzz_unique_edges",
			Help: "Number of distinct edges observed.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gradfuzz_queue_depth",
			Help: "Number of conditions currently queued in the depot.",
		}),
		CoverageDensity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gradfuzz_coverage_density",
			Help: "Fraction of the branch map with at least one observed hit.",
		}),
		ConditionsSolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradfuzz_conditions_solved_total",
			Help: "Total number of conditions driven to DONE.",
		}),
	}
	reg.MustRegister(m.ExecsTotal, m.CrashesTotal, m.TimeoutsTotal, m.UniqueEdges, m.QueueDepth, m.CoverageDensity, m.ConditionsSolved)
	return m
}

// WriteText gathers the current series and encodes them in the Prometheus
// text exposition format, via prometheus/common/expfmt rather than
// client_golang's own HTTP handler — used by `gradfuzz run` on shutdown to
// write a metrics.txt snapshot without standing up an HTTP listener.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metric families: %w", err)
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return fmt.Errorf("encode metric family %s: %w", family.GetName(), err)
		}
	}
	return nil
}

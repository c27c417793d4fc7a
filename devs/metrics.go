package devs

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus-compatible counters and gauges for experiment
// execution, namespaced "devsim_". It observes the experiment driver and
// root loop; it never touches per-model behavior internals.
//
// Metrics exposed:
//
//  1. active_runs (gauge): runs currently executing concurrently.
//     Labels: experiment.
//  2. ticks_total (counter): root-loop ticks processed.
//     Labels: experiment, variant.
//  3. imminent_nodes (histogram): imminent-child count per tick, a proxy
//     for per-tick fan-out cost.
//     Labels: experiment.
//  4. run_duration_seconds (histogram): wall-clock duration of one
//     (variant, iteration) run.
//     Labels: experiment, status (ok/error).
//  5. runs_total (counter): completed runs.
//     Labels: experiment, status.
type Metrics struct {
	activeRuns     prometheus.Gauge
	ticks          *prometheus.CounterVec
	imminentNodes  *prometheus.HistogramVec
	runDuration    *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	experimentName string
	enabled        bool
}

// NewMetrics registers devsim's metrics with registry (prometheus.DefaultRegisterer
// if nil) for a named experiment.
func NewMetrics(registry prometheus.Registerer, experimentName string) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		experimentName: experimentName,
		enabled:        true,
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   "devsim",
			Name:        "active_runs",
			Help:        "Runs currently executing concurrently",
			ConstLabels: prometheus.Labels{"experiment": experimentName},
		}),
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devsim",
			Name:      "ticks_total",
			Help:      "Root-loop ticks processed",
		}, []string{"experiment", "variant"}),
		imminentNodes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "devsim",
			Name:      "imminent_nodes",
			Help:      "Imminent-child count observed per tick",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128},
		}, []string{"experiment"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "devsim",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of one (variant, iteration) run",
			Buckets:   prometheus.DefBuckets,
		}, []string{"experiment", "status"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devsim",
			Name:      "runs_total",
			Help:      "Completed runs",
		}, []string{"experiment", "status"}),
	}
}

func (m *Metrics) SetActiveRuns(n int) {
	if m == nil || !m.enabled {
		return
	}
	m.activeRuns.Set(float64(n))
}

func (m *Metrics) ObserveTick(variant uint64, imminentCount int) {
	if m == nil || !m.enabled {
		return
	}
	m.ticks.WithLabelValues(m.experimentName, strconv.FormatUint(variant, 10)).Inc()
	m.imminentNodes.WithLabelValues(m.experimentName).Observe(float64(imminentCount))
}

// TickObserver adapts a Metrics collector to the Observer interface so it
// can be attached to a root simulator node: AfterSubmodelsTransition fires
// once per root tick, which is exactly where ticks_total and
// imminent_nodes are counted.
type TickObserver struct {
	NopObserver
	Metrics *Metrics
	Variant uint64
}

func (o TickObserver) AfterSubmodelsTransition(node *Simulator, simTime Time, tNext Time) {
	o.Metrics.ObserveTick(o.Variant, node.lastImminentCount)
}

func (o TickObserver) Name() string { return "metrics" }

func (m *Metrics) ObserveRun(seconds float64, ok bool) {
	if m == nil || !m.enabled {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.runDuration.WithLabelValues(m.experimentName, status).Observe(seconds)
	m.runs.WithLabelValues(m.experimentName, status).Inc()
}

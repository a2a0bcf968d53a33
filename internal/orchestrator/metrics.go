package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report task and intent activity.
type Metrics struct {
	taskDuration   *prometheus.HistogramVec
	intentOutcomes *prometheus.CounterVec
	intentDuration *prometheus.HistogramVec
	tasksActive    prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when the orchestrator is instantiated
// multiple times.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// The caller is responsible for supplying a fresh registry when unique metric
// names are required (for example in tests). Any registration error panics,
// mirroring promauto semantics and surfacing configuration bugs early.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nova",
			Subsystem: "orchestrator",
			Name:      "task_duration_seconds",
			Help:      "Wall time from input to the task's terminal state.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"state"},
	)
	intentOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nova",
			Subsystem: "orchestrator",
			Name:      "intent_outcomes_total",
			Help:      "Settled intents by action and outcome.",
		},
		[]string{"action", "outcome"},
	)
	intentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "nova",
			Subsystem: "orchestrator",
			Name:      "intent_duration_seconds",
			Help:      "Execution time of individual intents.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"action"},
	)
	tasksActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nova",
			Subsystem: "orchestrator",
			Name:      "tasks_active",
			Help:      "Number of tasks currently being executed.",
		},
	)

	collectors := []prometheus.Collector{taskDuration, intentOutcomes, intentDuration, tasksActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch target := collector.(type) {
				case *prometheus.HistogramVec:
					switch target { //nolint:exhaustive
					case taskDuration:
						taskDuration = already.ExistingCollector.(*prometheus.HistogramVec)
					case intentDuration:
						intentDuration = already.ExistingCollector.(*prometheus.HistogramVec)
					}
				case *prometheus.CounterVec:
					intentOutcomes = already.ExistingCollector.(*prometheus.CounterVec)
				case prometheus.Gauge:
					tasksActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		taskDuration:   taskDuration,
		intentOutcomes: intentOutcomes,
		intentDuration: intentDuration,
		tasksActive:    tasksActive,
	}
}

// ObserveTaskDuration records the lifetime of a finished task.
func (m *Metrics) ObserveTaskDuration(state TaskState, duration time.Duration) {
	if m == nil || m.taskDuration == nil {
		return
	}
	m.taskDuration.WithLabelValues(string(state)).Observe(duration.Seconds())
}

// ObserveIntent records one settled intent.
func (m *Metrics) ObserveIntent(action, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if m.intentOutcomes != nil {
		m.intentOutcomes.WithLabelValues(action, outcome).Inc()
	}
	if m.intentDuration != nil && duration > 0 {
		m.intentDuration.WithLabelValues(action).Observe(duration.Seconds())
	}
}

// IncActiveTasks marks a task as started.
func (m *Metrics) IncActiveTasks() {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Inc()
}

// DecActiveTasks marks a task as finished.
func (m *Metrics) DecActiveTasks() {
	if m == nil || m.tasksActive == nil {
		return
	}
	m.tasksActive.Dec()
}

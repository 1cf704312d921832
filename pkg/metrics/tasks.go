package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TaskMetrics records metadata for scheduled lifecycle tasks.
type TaskMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

// NewTaskMetrics registers the task metrics on the provided registerer.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	if reg == nil {
		return &TaskMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "task_duration_seconds",
		Help:    "Duration of scheduled tasks in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_success",
		Help: "Successful scheduled task executions.",
	}, []string{"task"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_failure",
		Help: "Failed scheduled task executions.",
	}, []string{"task"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_skipped",
		Help: "Scheduled tasks that found nothing to do.",
	}, []string{"task"})
	reg.MustRegister(duration, success, failure, skipped)
	return &TaskMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		skipped:  skipped,
	}
}

// ObserveDuration records the duration for the named task.
func (t *TaskMetrics) ObserveDuration(task string, duration time.Duration) {
	if t == nil || t.duration == nil {
		return
	}
	t.duration.WithLabelValues(normalizeLabel(task)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named task.
func (t *TaskMetrics) IncSuccess(task string) {
	if t == nil || t.success == nil {
		return
	}
	t.success.WithLabelValues(normalizeLabel(task)).Inc()
}

// IncFailure increments the failure counter for the named task.
func (t *TaskMetrics) IncFailure(task string) {
	if t == nil || t.failure == nil {
		return
	}
	t.failure.WithLabelValues(normalizeLabel(task)).Inc()
}

// IncSkipped increments the skip counter, used when a task fires against an
// order that already reached a terminal state.
func (t *TaskMetrics) IncSkipped(task string) {
	if t == nil || t.skipped == nil {
		return
	}
	t.skipped.WithLabelValues(normalizeLabel(task)).Inc()
}

func normalizeLabel(task string) string {
	if task == "" {
		return "unknown"
	}
	return task
}
